// Package userstore implements memoauth.UserStore.
//
// [Memory] serves tests and local runs. [Postgres] is the production store on
// pgx; [Migrate] creates its schema with goose from embedded SQL files.
//
// Postgres maps a unique-key violation to memoauth.ErrEmailAlreadyExists and
// connection failures or timeouts to memoauth.ErrStoreUnavailable. Anything
// else is returned wrapped and surfaces as an internal error.
package userstore
