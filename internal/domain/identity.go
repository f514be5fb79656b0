package domain

// AssetKey is a stable entity identifier such as an AESO asset ID.
type AssetKey string

// IdentitySnapshot is the identity state after observing one window.
// Known only grows across a run.
type IdentitySnapshot struct {
	AsOf   FetchWindow
	Known  []AssetKey // sorted
	New    []AssetKey // sorted; first seen in AsOf
	Absent []AssetKey // sorted; known but not present in AsOf
}
