package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/greenmart/storefront/internal/api"
	"github.com/greenmart/storefront/internal/storage"
	pkgerrors "github.com/greenmart/storefront/pkg/errors"
	"github.com/greenmart/storefront/pkg/logger"
)

type fakeExchanger struct {
	resp *api.AuthResponse
	err  error

	loginCalls  int
	signupCalls int
}

func (f *fakeExchanger) Login(ctx context.Context, creds api.Credentials) (*api.AuthResponse, error) {
	f.loginCalls++
	return f.resp, f.err
}

func (f *fakeExchanger) Signup(ctx context.Context, params api.SignupParams) (*api.AuthResponse, error) {
	f.signupCalls++
	return f.resp, f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func okResponse() *api.AuthResponse {
	return &api.AuthResponse{
		AccessToken: "tok-1",
		User:        api.User{ID: 1, Email: "ada@example.com", FullName: "Ada L", Role: api.RoleBuyer},
	}
}

func TestLoginEstablishesAndPersistsPair(t *testing.T) {
	mem := storage.NewMemory()
	store, err := NewStore(mem, &fakeExchanger{resp: okResponse()}, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()
	store.Load(ctx)

	user, err := store.Login(ctx, api.Credentials{Email: "ada@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}
	if !store.IsAuthenticated() {
		t.Fatal("expected authenticated session")
	}

	token, err := mem.Get(ctx, storage.SlotToken)
	if err != nil || token != "tok-1" {
		t.Fatalf("expected persisted token, got %q, %v", token, err)
	}
	rawUser, err := mem.Get(ctx, storage.SlotUser)
	if err != nil {
		t.Fatalf("expected persisted user: %v", err)
	}
	var persisted api.User
	if err := json.Unmarshal([]byte(rawUser), &persisted); err != nil {
		t.Fatalf("user record not valid JSON: %v", err)
	}
	if persisted.ID != 1 || persisted.Role != api.RoleBuyer {
		t.Fatalf("unexpected persisted user %+v", persisted)
	}
}

func TestRejectedLoginLeavesSessionUntouched(t *testing.T) {
	mem := storage.NewMemory()
	rejected := pkgerrors.New(pkgerrors.CodeAuthRejected, "Invalid credentials")
	store, err := NewStore(mem, &fakeExchanger{err: rejected}, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()
	store.Load(ctx)

	_, err = store.Login(ctx, api.Credentials{Email: "bad@x.com", Password: "wrong"})
	if !errors.Is(err, rejected) {
		t.Fatalf("expected the backend rejection, got %v", err)
	}
	if store.IsAuthenticated() {
		t.Fatal("rejected login must not authenticate")
	}
	if mem.Len() != 0 {
		t.Fatal("rejected login must not persist anything")
	}
}

func TestSignupSignsIn(t *testing.T) {
	exchanger := &fakeExchanger{resp: okResponse()}
	store, err := NewStore(storage.NewMemory(), exchanger, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()
	store.Load(ctx)

	if _, err := store.Signup(ctx, api.SignupParams{Email: "ada@example.com", Password: "pw", FullName: "Ada L", Role: api.RoleBuyer}); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if exchanger.signupCalls != 1 {
		t.Fatalf("expected one signup call, got %d", exchanger.signupCalls)
	}
	if !store.IsAuthenticated() {
		t.Fatal("signup should sign the user in")
	}
}

func TestLogoutClearsBothSlots(t *testing.T) {
	mem := storage.NewMemory()
	store, err := NewStore(mem, &fakeExchanger{resp: okResponse()}, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()
	store.Load(ctx)
	if _, err := store.Login(ctx, api.Credentials{}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	store.Logout(ctx)
	if store.IsAuthenticated() || store.User() != nil || store.Token() != "" {
		t.Fatal("expected signed-out session")
	}
	if mem.Len() != 0 {
		t.Fatal("expected both slots cleared")
	}
}

func TestLoadRehydratesPair(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	first, err := NewStore(mem, &fakeExchanger{resp: okResponse()}, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	first.Load(ctx)
	if _, err := first.Login(ctx, api.Credentials{}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	second, err := NewStore(mem, &fakeExchanger{}, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	second.Load(ctx)
	if !second.IsAuthenticated() {
		t.Fatal("expected rehydrated session")
	}
	if user := second.User(); user == nil || user.Email != "ada@example.com" {
		t.Fatalf("unexpected rehydrated user %+v", user)
	}
	if second.Token() != "tok-1" {
		t.Fatalf("unexpected rehydrated token %q", second.Token())
	}
}

func TestLoadDiscardsHalfPersistedPair(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	if err := mem.Set(ctx, storage.SlotToken, "tok-orphan"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store, err := NewStore(mem, &fakeExchanger{}, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	store.Load(ctx)
	if store.IsAuthenticated() {
		t.Fatal("token without user record must not authenticate")
	}
	if mem.Len() != 0 {
		t.Fatal("orphaned slot should be cleared")
	}
}

func TestLoadDiscardsCorruptUserRecord(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	if err := mem.Set(ctx, storage.SlotToken, "tok-1"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := mem.Set(ctx, storage.SlotUser, "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store, err := NewStore(mem, &fakeExchanger{}, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	store.Load(ctx)
	if store.IsAuthenticated() {
		t.Fatal("corrupt user record must not authenticate")
	}
	if mem.Len() != 0 {
		t.Fatal("corrupt pair should be cleared")
	}
}

func TestAuthenticateFallsBackToPersistedToken(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	if err := mem.Set(ctx, storage.SlotToken, "tok-persisted"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rawUser, _ := json.Marshal(api.User{ID: 1, Email: "ada@example.com", Role: api.RoleBuyer})
	if err := mem.Set(ctx, storage.SlotUser, string(rawUser)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store, err := NewStore(mem, &fakeExchanger{}, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	// no Load: a request fired before rehydration still authenticates
	req, _ := http.NewRequest(http.MethodGet, "http://localhost/seller/products", nil)
	store.Authenticate(req)
	if got := req.Header.Get("Authorization"); got != "Bearer tok-persisted" {
		t.Fatalf("expected persisted-token fallback, got %q", got)
	}

	// after an explicit logout the fallback must not resurrect the token
	store.Logout(ctx)
	cleared, _ := http.NewRequest(http.MethodGet, "http://localhost/seller/products", nil)
	store.Authenticate(cleared)
	if got := cleared.Header.Get("Authorization"); got != "" {
		t.Fatalf("expected no token after logout, got %q", got)
	}
}

func TestInitializingFlipsOnLoad(t *testing.T) {
	store, err := NewStore(storage.NewMemory(), &fakeExchanger{resp: okResponse()}, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if !store.Initializing() {
		t.Fatal("session must report initializing before load")
	}
	store.Load(context.Background())
	if store.Initializing() {
		t.Fatal("session should settle after load")
	}
}

func TestAuthenticateAndTransport(t *testing.T) {
	store, err := NewStore(storage.NewMemory(), &fakeExchanger{resp: okResponse()}, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()
	store.Load(ctx)

	req, _ := http.NewRequest(http.MethodGet, "http://localhost/seller/products", nil)
	store.Authenticate(req)
	if req.Header.Get("Authorization") != "" {
		t.Fatal("signed-out session must not attach a token")
	}

	if _, err := store.Login(ctx, api.Credentials{}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	store.Authenticate(req)
	if got := req.Header.Get("Authorization"); got != "Bearer tok-1" {
		t.Fatalf("unexpected header %q", got)
	}

	var seen string
	rt := store.Transport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r.Header.Get("Authorization")
		return nil, errors.New("stop")
	}))
	outbound, _ := http.NewRequest(http.MethodGet, "http://localhost/", nil)
	_, _ = rt.RoundTrip(outbound)
	if seen != "Bearer tok-1" {
		t.Fatalf("transport did not attach token, saw %q", seen)
	}
	if outbound.Header.Get("Authorization") != "" {
		t.Fatal("transport must not mutate the caller's request")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestTokenExpiry(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": expiry.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	store, errNew := NewStore(storage.NewMemory(), &fakeExchanger{resp: &api.AuthResponse{
		AccessToken: signed,
		User:        api.User{ID: 1, Email: "ada@example.com", Role: api.RoleBuyer},
	}}, testLogger())
	if errNew != nil {
		t.Fatalf("NewStore: %v", errNew)
	}
	ctx := context.Background()
	store.Load(ctx)

	if _, err := store.TokenExpiry(); err == nil {
		t.Fatal("expected error for signed-out session")
	}

	if _, err := store.Login(ctx, api.Credentials{}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	got, err := store.TokenExpiry()
	if err != nil {
		t.Fatalf("TokenExpiry: %v", err)
	}
	if !got.Equal(expiry) {
		t.Fatalf("expected expiry %s, got %s", expiry, got)
	}
}

func TestNewStoreValidatesWiring(t *testing.T) {
	if _, err := NewStore(nil, &fakeExchanger{}, testLogger()); err == nil {
		t.Fatal("expected error for nil storage")
	}
	if _, err := NewStore(storage.NewMemory(), nil, testLogger()); err == nil {
		t.Fatal("expected error for nil exchanger")
	}
	if _, err := NewStore(storage.NewMemory(), &fakeExchanger{}, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}
