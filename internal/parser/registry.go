package parser

import (
	"fmt"
	"strings"
)

// Registry holds the request-end decoders in priority order.
type Registry struct {
	decoders []RequestEndDecoder
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry returns the built-in decoders. Order matters: the FOG
// key/value form shares the "HttpRequestEnd:" prefix with the JSON form
// and must be tried first, and the positional form only applies when the
// payload is not JSON.
func NewRegistry() *Registry {
	return &Registry{
		decoders: []RequestEndDecoder{
			NewFogRequestEndDecoder(),
			NewJSONRequestEndDecoder(),
			NewLegacyRequestEndDecoder(),
			NewLicenseRequestEndDecoder(),
			NewFogFragmentDecoder(),
			NewOnDemandDecoder(),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register appends a decoder with the lowest priority.
func (r *Registry) Register(d RequestEndDecoder) {
	r.decoders = append(r.decoders, d)
}

// Decoders returns the decoders in priority order.
func (r *Registry) Decoders() []RequestEndDecoder {
	return append([]RequestEndDecoder(nil), r.decoders...)
}

// Decode runs each decoder until one recognizes the line.
func (r *Registry) Decode(line string) (*RequestEnd, bool) {
	for _, d := range r.decoders {
		if !strings.Contains(line, d.Prefix()) {
			continue
		}
		if req, ok := d.Decode(line); ok {
			req.Decoder = d.Name()
			return req, true
		}
	}
	return nil, false
}

// GetDecoderByName returns a decoder by its name.
func (r *Registry) GetDecoderByName(name string) (RequestEndDecoder, error) {
	name = strings.ToLower(name)
	for _, d := range r.decoders {
		if strings.ToLower(d.Name()) == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("decoder not found: %s", name)
}
