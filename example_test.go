package authcore_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nutritrack/authcore"
	"github.com/nutritrack/authcore/userstore"
)

func exampleEngine() (*authcore.Engine, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(userstore.NewMemory()).
		Build()
	if err != nil {
		panic(err)
	}
	return engine, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

// ExampleEngine_Login registers an account, logs in and resolves the access
// token back to the identity.
func ExampleEngine_Login() {
	engine, done := exampleEngine()
	defer done()
	ctx := context.Background()

	if _, err := engine.Register(ctx, authcore.RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct horse",
	}); err != nil {
		panic(err)
	}

	_, pair, err := engine.Login(ctx, "alice", "correct horse")
	if err != nil {
		panic(err)
	}
	id, err := engine.ResolveFromAccessToken(ctx, pair.AccessToken)
	if err != nil {
		panic(err)
	}
	fmt.Println(id.Username, id.Role)

	_, _, err = engine.Login(ctx, "alice", "wrong")
	fmt.Println(errors.Is(err, authcore.ErrInvalidCredentials))
	// Output:
	// alice user
	// true
}

// ExampleEngine_Refresh rotates a refresh token; the old one is refused.
func ExampleEngine_Refresh() {
	engine, done := exampleEngine()
	defer done()
	ctx := context.Background()

	id, _ := engine.Register(ctx, authcore.RegisterInput{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "battery staple",
	})
	pair, _ := engine.IssueTokenPair(ctx, id)

	_, next, err := engine.Refresh(ctx, pair.RefreshToken)
	fmt.Println(err == nil, next.RefreshToken != pair.RefreshToken)

	_, _, err = engine.Refresh(ctx, pair.RefreshToken)
	fmt.Println(errors.Is(err, authcore.ErrRefreshTokenInvalid))
	// Output:
	// true true
	// true
}
