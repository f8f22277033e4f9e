// Package loader turns stored policy documents into ordered text segments
// with positional metadata, ready for fingerprinting.
package loader

import (
	"context"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
)

// Service abstracts listing and downloading objects so document roots can
// live on local disk or any registered storage scheme.
type Service interface {
	// List returns objects available at the given location.
	List(ctx context.Context, location string) ([]storage.Object, error)
	// Download returns the content of the given object.
	Download(ctx context.Context, object storage.Object) ([]byte, error)
}

// afsService is a Service implemented using github.com/viant/afs
type afsService struct {
	svc afs.Service
}

// NewAFS constructs a Service backed by the default AFS service.
func NewAFS() Service {
	return &afsService{svc: afs.New()}
}

func (a *afsService) List(ctx context.Context, location string) ([]storage.Object, error) {
	return a.svc.List(ctx, location)
}

func (a *afsService) Download(ctx context.Context, object storage.Object) ([]byte, error) {
	return a.svc.Download(ctx, object)
}
