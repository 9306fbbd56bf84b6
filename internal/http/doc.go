// Package http provides HTTP handlers and middleware for the qdue API.
//
// The router exposes the following endpoints:
//   - POST /login: issues a session token. Body: {"email","password"}. Response:
//     {"token","expires_at","principal":{"user_id","is_admin"}} with the token also
//     surfaced via the `X-Session-Token` header and a `session_token` cookie.
//   - POST /logout: revokes the current session token extracted from the
//     Authorization header or session cookie. Returns 204 No Content and clears
//     the cookie.
//   - GET /users, POST /users, PUT /users/{id}, DELETE /users/{id}: administrator
//     controlled user management endpoints exchanging the `userDTO` payload defined
//     in user_handler.go.
//   - GET /teams, POST /teams, PUT /teams/{id}, DELETE /teams/{id} and the matching
//     /shifts endpoints: catalog management exchanging the `teamDTO` and `shiftDTO`
//     payloads defined in catalog_handler.go. Listing is available to any
//     authenticated principal while mutations require admin privileges.
//   - GET /rules, POST /rules, GET /rules/{id}, DELETE /rules/{id}: recurrence rule
//     management. Rules are immutable, so there is no update endpoint.
//   - GET /assignments?subject_id=, POST /assignments: subject-to-team bindings.
//     Creating an assignment supersedes the subject's open one.
//   - GET /exceptions?subject_id=&start=&end=, POST /exceptions,
//     DELETE /exceptions/{id}: approved schedule exceptions.
//   - GET /schedule/day?date=&subject_id=: one resolved day.
//   - GET /schedule/range?start=&end=&subject_id=: a resolved range with per-date
//     failure reporting.
//   - GET /schedule/month?year=&month=&subject_id=: a resolved calendar month.
//   - GET /schedule/events?start=&end=&subject_id=: the range flattened to
//     per-shift events.
//   - GET /schedule/working-days: with date= answers whether the subject works
//     that day; with start= and end= returns working and rest day counts.
//   - GET /settings/anchor, PUT /settings/anchor: the scheme anchor date the
//     cycle arithmetic is pinned to. Updating it is admin only and invalidates
//     every cached day.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
