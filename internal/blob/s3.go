package blob

import (
	"context"

	infraS3 "gymledger/internal/infra/blob/s3"
)

// S3Config re-exports the S3 backend configuration.
type S3Config = infraS3.Config

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// NewFakeS3 returns an S3 Store talking to an in-process fake bucket, for
// tests in packages that must not import the infra backends directly.
func NewFakeS3(ctx context.Context) (Store, error) {
	store, _, err := infraS3.NewFake(ctx)
	return store, err
}
