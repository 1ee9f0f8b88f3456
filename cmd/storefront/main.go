package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/greenmart/storefront/internal/api"
	"github.com/greenmart/storefront/internal/cart"
	"github.com/greenmart/storefront/internal/checkout"
	"github.com/greenmart/storefront/internal/session"
	"github.com/greenmart/storefront/internal/storage"
	"github.com/greenmart/storefront/pkg/config"
	"github.com/greenmart/storefront/pkg/logger"
	"github.com/greenmart/storefront/pkg/metrics"
)

const usage = `usage: storefront <command> [flags]

commands:
  products            list the catalog (-category <slug>)
  categories          list categories
  cart                show | add | remove | set | clear
  login               sign in (-email, -password)
  signup              create an account (-email, -password, -name, -role)
  logout              sign out
  whoami              show the active session
  checkout            place an order (-name, -email, -address, -phone)
  seller              list | create | update | delete (requires seller login)
  admin               products | create | update | delete | orders | categories
`

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Debug(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(ctx, cfg, logg, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, args []string) error {
	if len(args) == 0 {
		fmt.Print(usage)
		return fmt.Errorf("a command is required")
	}

	var requestMetrics *metrics.RequestMetrics
	if cfg.Metrics.Addr != "" {
		registry := prometheus.NewRegistry()
		requestMetrics = metrics.NewRequestMetrics(registry)
		go serveMetrics(ctx, cfg.Metrics.Addr, registry, logg)
	}

	store, err := storage.Open(ctx, cfg, logg)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logg.Error(ctx, "error closing state store", err)
		}
	}()

	public, err := api.NewClient(api.ClientParams{Config: cfg.API, Logger: logg, Metrics: requestMetrics})
	if err != nil {
		return fmt.Errorf("building backend client: %w", err)
	}

	cartStore, err := cart.NewStore(store, logg)
	if err != nil {
		return err
	}
	cartStore.Load(ctx)

	sessionStore, err := session.NewStore(store, public, logg)
	if err != nil {
		return err
	}
	sessionStore.Load(ctx)

	// Same backend, but every request carries the session's bearer token.
	authed, err := api.NewClient(api.ClientParams{
		Config:    cfg.API,
		Logger:    logg,
		Metrics:   requestMetrics,
		Transport: sessionStore.Transport(nil),
	})
	if err != nil {
		return fmt.Errorf("building authenticated client: %w", err)
	}

	checkoutService, err := checkout.NewService(cartStore, public, logg)
	if err != nil {
		return err
	}

	app := &cli{
		cart:     cartStore,
		session:  sessionStore,
		public:   public,
		seller:   authed,
		checkout: checkoutService,
	}
	return app.dispatch(ctx, args[0], args[1:])
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logg *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logg.Error(ctx, "metrics listener stopped", err)
	}
}

type cli struct {
	cart     *cart.Store
	session  *session.Store
	public   *api.Client
	seller   *api.Client
	checkout *checkout.Service
}

func (c *cli) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "products":
		return c.listProducts(ctx, args)
	case "categories":
		return c.listCategories(ctx)
	case "cart":
		return c.cartCommand(ctx, args)
	case "login":
		return c.login(ctx, args)
	case "signup":
		return c.signup(ctx, args)
	case "logout":
		c.session.Logout(ctx)
		fmt.Println("signed out")
		return nil
	case "whoami":
		return c.whoami()
	case "checkout":
		return c.placeOrder(ctx, args)
	case "seller":
		return c.sellerCommand(ctx, args)
	case "admin":
		return c.adminCommand(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (c *cli) listProducts(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)
	category := fs.String("category", "", "filter by category slug")
	if err := fs.Parse(args); err != nil {
		return err
	}

	products, err := c.public.ListProducts(ctx, *category)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", p.ID, p.Name, p.Price.StringFixed(2), p.Stock)
	}
	return w.Flush()
}

func (c *cli) listCategories(ctx context.Context) error {
	categories, err := c.public.ListCategories(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSLUG")
	for _, cat := range categories {
		fmt.Fprintf(w, "%d\t%s\t%s\n", cat.ID, cat.Name, cat.Slug)
	}
	return w.Flush()
}

func (c *cli) cartCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"show"}
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "show":
		return c.showCart()
	case "add":
		fs := flag.NewFlagSet("cart add", flag.ContinueOnError)
		id := fs.Int("id", 0, "product id")
		qty := fs.Int("qty", 1, "quantity")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *id <= 0 {
			return fmt.Errorf("-id is required")
		}
		product, err := c.public.GetProduct(ctx, *id)
		if err != nil {
			return err
		}
		c.cart.Add(ctx, cart.Line{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  *qty,
			ImageURL:  product.ImageURL,
		})
		return c.showCart()
	case "remove":
		fs := flag.NewFlagSet("cart remove", flag.ContinueOnError)
		id := fs.Int("id", 0, "product id")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		c.cart.Remove(ctx, *id)
		return c.showCart()
	case "set":
		fs := flag.NewFlagSet("cart set", flag.ContinueOnError)
		id := fs.Int("id", 0, "product id")
		qty := fs.Int("qty", 0, "quantity, zero removes")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		c.cart.SetQuantity(ctx, *id, *qty)
		return c.showCart()
	case "clear":
		c.cart.Clear(ctx)
		fmt.Println("cart cleared")
		return nil
	default:
		return fmt.Errorf("unknown cart command %q", sub)
	}
}

func (c *cli) showCart() error {
	lines := c.cart.Lines()
	if len(lines) == 0 {
		fmt.Println("cart is empty")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQTY\tUNIT\tLINE")
	for _, line := range lines {
		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			line.ProductID, line.Name, line.Quantity, line.UnitPrice.StringFixed(2), lineTotal.StringFixed(2))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d items, subtotal %s\n", c.cart.TotalItems(), c.cart.Subtotal().StringFixed(2))
	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := c.session.Login(ctx, api.Credentials{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s (%s)\n", user.Email, user.Role)
	return nil
}

func (c *cli) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	name := fs.String("name", "", "full name")
	role := fs.String("role", string(api.RoleBuyer), "buyer or seller")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := c.session.Signup(ctx, api.SignupParams{
		Email:    *email,
		Password: *password,
		FullName: *name,
		Role:     api.Role(strings.ToLower(*role)),
	})
	if err != nil {
		return err
	}
	fmt.Printf("welcome %s, signed in as %s\n", user.FullName, user.Role)
	return nil
}

func (c *cli) whoami() error {
	user := c.session.User()
	if user == nil {
		fmt.Println("not signed in")
		return nil
	}
	fmt.Printf("%s <%s> (%s)\n", user.FullName, user.Email, user.Role)
	if expiry, err := c.session.TokenExpiry(); err == nil {
		fmt.Printf("token expires %s\n", expiry.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func (c *cli) placeOrder(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	name := fs.String("name", "", "customer name")
	email := fs.String("email", "", "contact email")
	phone := fs.String("phone", "", "contact phone (optional)")
	address := fs.String("address", "", "delivery address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	details := checkout.Details{CustomerName: *name, Email: *email, Address: *address}
	if *phone != "" {
		details.Phone = phone
	}
	order, err := c.checkout.PlaceOrder(ctx, details)
	if err != nil {
		return err
	}
	fmt.Printf("order #%d placed, total %s, status %s\n", order.ID, order.Total.StringFixed(2), order.Status)
	return nil
}

func (c *cli) sellerCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("seller command required: list | create | update | delete")
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "list":
		products, err := c.seller.SellerListProducts(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK")
		for _, p := range products {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", p.ID, p.Name, p.Price.StringFixed(2), p.Stock)
		}
		return w.Flush()
	case "create", "update":
		fs := flag.NewFlagSet("seller "+sub, flag.ContinueOnError)
		id := fs.Int("id", 0, "product id (update only)")
		name := fs.String("name", "", "product name")
		description := fs.String("description", "", "product description")
		price := fs.String("price", "", "unit price, e.g. 3.50")
		imageURL := fs.String("image", "", "image url")
		categoryID := fs.Int("category", 0, "category id")
		stock := fs.Int("stock", -1, "stock on hand")
		if err := fs.Parse(rest); err != nil {
			return err
		}

		params, err := sellerParams(*name, *description, *price, *imageURL, *categoryID, *stock)
		if err != nil {
			return err
		}

		var product *api.Product
		if sub == "create" {
			product, err = c.seller.SellerCreateProduct(ctx, params)
		} else {
			if *id <= 0 {
				return fmt.Errorf("-id is required for update")
			}
			product, err = c.seller.SellerUpdateProduct(ctx, *id, params)
		}
		if err != nil {
			return err
		}
		fmt.Printf("product #%d %s saved at %s\n", product.ID, product.Name, product.Price.StringFixed(2))
		return nil
	case "delete":
		fs := flag.NewFlagSet("seller delete", flag.ContinueOnError)
		id := fs.Int("id", 0, "product id")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *id <= 0 {
			return fmt.Errorf("-id is required")
		}
		if err := c.seller.SellerDeleteProduct(ctx, *id); err != nil {
			return err
		}
		fmt.Printf("product #%d deleted\n", *id)
		return nil
	default:
		return fmt.Errorf("unknown seller command %q", sub)
	}
}

func (c *cli) adminCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("admin command required: products | create | update | delete | orders | categories")
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "products":
		products, err := c.public.AdminListProducts(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK")
		for _, p := range products {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", p.ID, p.Name, p.Price.StringFixed(2), p.Stock)
		}
		return w.Flush()
	case "create", "update":
		fs := flag.NewFlagSet("admin "+sub, flag.ContinueOnError)
		id := fs.Int("id", 0, "product id (update only)")
		name := fs.String("name", "", "product name")
		description := fs.String("description", "", "product description")
		price := fs.String("price", "", "unit price, e.g. 3.50")
		imageURL := fs.String("image", "", "image url")
		categoryID := fs.Int("category", 0, "category id")
		stock := fs.Int("stock", -1, "stock on hand")
		if err := fs.Parse(rest); err != nil {
			return err
		}

		params, err := sellerParams(*name, *description, *price, *imageURL, *categoryID, *stock)
		if err != nil {
			return err
		}

		var product *api.Product
		if sub == "create" {
			product, err = c.public.AdminCreateProduct(ctx, params)
		} else {
			if *id <= 0 {
				return fmt.Errorf("-id is required for update")
			}
			product, err = c.public.AdminUpdateProduct(ctx, *id, params)
		}
		if err != nil {
			return err
		}
		fmt.Printf("product #%d %s saved at %s\n", product.ID, product.Name, product.Price.StringFixed(2))
		return nil
	case "delete":
		fs := flag.NewFlagSet("admin delete", flag.ContinueOnError)
		id := fs.Int("id", 0, "product id")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *id <= 0 {
			return fmt.Errorf("-id is required")
		}
		if err := c.public.AdminDeleteProduct(ctx, *id); err != nil {
			return err
		}
		fmt.Printf("product #%d deleted\n", *id)
		return nil
	case "orders":
		orders, err := c.public.AdminListOrders(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCUSTOMER\tEMAIL\tTOTAL\tSTATUS")
		for _, o := range orders {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", o.ID, o.CustomerName, o.Email, o.Total.StringFixed(2), o.Status)
		}
		return w.Flush()
	case "categories":
		categories, err := c.public.AdminListCategories(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSLUG")
		for _, cat := range categories {
			fmt.Fprintf(w, "%d\t%s\t%s\n", cat.ID, cat.Name, cat.Slug)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown admin command %q", sub)
	}
}

func sellerParams(name, description, price, imageURL string, categoryID, stock int) (api.ProductParams, error) {
	var params api.ProductParams
	if name != "" {
		params.Name = &name
	}
	if description != "" {
		params.Description = &description
	}
	if price != "" {
		parsed, err := decimal.NewFromString(price)
		if err != nil {
			return params, fmt.Errorf("invalid price %q: %w", price, err)
		}
		params.Price = &parsed
	}
	if imageURL != "" {
		params.ImageURL = &imageURL
	}
	if categoryID > 0 {
		params.CategoryID = &categoryID
	}
	if stock >= 0 {
		params.Stock = &stock
	}
	return params, nil
}
