// Package httpapi exposes memoauth.Manager as a JSON HTTP API.
//
// Routes:
//
//	POST /auth/signup   {email,password,passwordCheck,nickname,birthDate}  201
//	POST /auth/login    {email,password}                                   200 tokens
//	POST /auth/reissue  {email,refreshToken}                               200 tokens
//	POST /auth/logout   Authorization: Bearer <access>, optional {email}   200
//	GET  /auth/me       Authorization: Bearer <access>                     200
//	GET  /healthz                                                          200
//	GET  /metrics       (when a metrics handler is configured)
//
// Every failure is a JSON object {timestamp, status, message}. Statuses come
// from memoauth.HTTPStatus, except that reissue answers an unknown email with
// 404 and logout answers a missing session with 404. Logout only ends the
// session of the bearer's subject; a body email naming anyone else is a 400.
package httpapi
