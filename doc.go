// Package dialog renders the login and registration dialog from the
// authentication capabilities a backend declares.
//
// Configuration:
//   - ConfigStore performs a single retrieval through a ConfigSource and keeps
//     the result for the lifetime of the process. Until a retrieval succeeds
//     every flag is false, so the dialog fails closed and shows no sign in
//     method. Failures are logged, counted and surfaced as RetrieveError.
//   - Sources live in subpackages: httpsource reads the JSON document served
//     by a backend, bunsource reads settings rows through bun.
//
// Rendering:
//   - RenderPolicy answers every visibility question for one snapshot, page
//     context and mode. BuildView resolves it into a View whose fields the
//     template prints without further logic.
//   - DialogController mounts the pages on a go-router app and feeds the CSRF
//     token stored by the csrf middleware into both forms.
//
// External login:
//   - Clicking a provider button hands the provider id to an
//     ExternalAuthInitiator. The external package provides a passport path
//     initiator and an OAuth2/OIDC initiator with PKCE.
package dialog
