package services

import (
	"context"
	"sync"

	"github.com/refstack/affiliate-backend/models"
)

// PaymentGateway executes a single payout through an external provider
type PaymentGateway interface {
	// Name is the method string stored on payments ("paypal", "stripe", ...)
	Name() string
	// Pay sends the amount to the affiliate's payment address and returns the
	// provider transaction reference.
	Pay(ctx context.Context, payment *models.Payment, affiliate *models.Affiliate) (*models.GatewayResult, error)
}

// GatewayRegistry maps method names to gateways. Registration happens at
// startup; lookups are safe for concurrent use.
type GatewayRegistry struct {
	mu       sync.RWMutex
	gateways map[string]PaymentGateway
}

func NewGatewayRegistry() *GatewayRegistry {
	return &GatewayRegistry{gateways: make(map[string]PaymentGateway)}
}

// Register adds a gateway under its own name, replacing any previous one
func (r *GatewayRegistry) Register(gateway PaymentGateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[gateway.Name()] = gateway
}

// Get returns the gateway for a method name
func (r *GatewayRegistry) Get(method string) (PaymentGateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gateway, ok := r.gateways[method]
	return gateway, ok
}
