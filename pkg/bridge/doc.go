// Package bridge orchestrates single sign-on between the host platform and
// the external ERP system.
//
// # Flows
//
// Inbound by token: the ERP redirects the browser to /erp/login with a bearer
// token previously issued by this service. The token is consumed (single
// use), the bound email is re-resolved on the host platform and a session is
// established for the account if it is enabled.
//
// Inbound by email: /erp/auth-user accepts a bare email claim with no
// possession proof. This path relies entirely on network-layer trust and must
// only be routable from the ERP deployment's trusted network. That is a
// deployment constraint, not something this process can enforce.
//
// Outbound: /erp/api-login issues a fresh single-use token bound to the
// caller's identity snapshot and returns an ERP URL embedding it. The ERP
// side later redeems the token via /erp/validate-token.
//
// # Collaborators
//
// The host platform's user lookup and session machinery are external to this
// service. They are injected as IdentityResolver and SessionEstablisher;
// pkg/platform provides HTTP-backed implementations.
//
// Identity data bound to a token is a snapshot from issuance time. Display
// fields are served from the snapshot, but enablement is always re-checked
// against a fresh resolver lookup at validation time, so a disabled account
// cannot ride in on a stale token.
package bridge
