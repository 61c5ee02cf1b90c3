package ports

import "context"

// RegistryClient resolves the manifest digest a registry currently serves
// for one repository:tag. Implementations must apply their own bounded
// timeout; a failed fetch is reported as an error, never a guess.
type RegistryClient interface {
	ManifestDigest(ctx context.Context, repository, tag string) (string, error)
}
