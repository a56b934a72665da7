// Package auth implements the credential lifecycle of the rideshare backend.
//
// It owns password login, access and refresh token issuance with atomic
// refresh rotation, email verification and password reset tokens, and the
// guard chain that protects HTTP routes. Four token classes exist (access,
// refresh, email verification, password reset); each one is signed with its
// own secret and carries its class in the "cls" claim, so a token minted for
// one purpose never verifies as another.
//
// Refresh and password reset tokens are persisted only as keyed BLAKE2b
// digests. Passwords are stored as bcrypt hashes.
//
// The package is wired together by Auther:
//
//	settings, _ := cfg.Settings()
//	repo := auth.NewRepositoryManager(db)
//	auther := auth.NewAuther(settings, repo, notifier,
//		auth.WithLogger(logger),
//		auth.WithActivitySink(auth.NewMetricsSink(registry)),
//	)
//	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler(logger)})
//	auth.NewAuthController(auther).RegisterRoutes(app.Group("/auth"))
package auth
