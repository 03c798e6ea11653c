// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

/*
Package auth provides email/password accounts for Kampai.

Access is granted by short-lived HS256 JWTs. Each sign-in also opens a
server-side refresh session in Badger, and the refresh token is rotated on
every use:

	svc, err := auth.NewService(auth.Config{Secret: secret}, store, auth.NewSessionStore(db))
	tokens, err := svc.SignIn(ctx, auth.SignInInput{Email: email, Password: pw})
	tokens, err = svc.Refresh(ctx, tokens.RefreshToken)

Components that hold per-user state (websocket map sessions) subscribe to
auth events and drop that state on EventSignedOut:

	sub := svc.Subscribe(func(e auth.Event) { ... })
	defer svc.Unsubscribe(sub)

Middleware.Require and Middleware.Optional read the token from the
Authorization header, falling back to the kampai_token cookie.
*/
package auth
