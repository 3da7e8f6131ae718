package review

import (
	"context"

	"adline/internal/domain"
)

// ContentStore publishes encoded ad content.
type ContentStore interface {
	Put(ctx context.Context, data []byte) (string, error)
}

// Contracts is the contract surface of the node.
type Contracts interface {
	EstimateDeploy(ctx context.Context, req domain.DeployRequest) (domain.DeployEstimate, error)
	Deploy(ctx context.Context, req domain.DeployRequest, est domain.DeployEstimate) (string, error)
	EstimateCall(ctx context.Context, req domain.CallRequest) (domain.CallEstimate, error)
	InvokeCall(ctx context.Context, req domain.CallRequest, est domain.CallEstimate) (string, error)
}

type TxWatcher interface {
	Watch(ctx context.Context, hash string) <-chan domain.TxEvent
}

type Store interface {
	Update(ctx context.Context, id string, patch domain.AdPatch) (domain.Ad, error)
}

// AdSink receives every ad change the workflow makes so the owner of the ad
// collection can apply the same change.
type AdSink interface {
	ApplyAd(ad domain.Ad)
}
