/*
Package web serves forkful's HTML pages, its JSON API and the realtime
notification stream.

Pages are html/template files embedded in the binary and rendered inside a
shared layout. The recipe page reads the requested size from ?scale= or
?servings= and renders the ingredient list through the scale package,
with links that step the factor up and down.

Middleware runs in this order for every request:

 1. request logging and metrics, tagged with the matched route
 2. per-IP rate limiting (429 with Retry-After)
 3. session loading from the Authorization header or session cookie

/events is a server-sent events stream of the signed-in user's
notifications. /api/ is consumed by pkg/client and the CLI.
*/
package web
