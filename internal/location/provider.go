// Package location is the device-position boundary. Positioning itself
// belongs to the OS and its permission prompts; this package only models
// "give me a position or tell me you can't" and the message copy built
// from it.
package location

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrUnavailable means no position can be produced — permission denied,
// provider disabled, or simply not configured. Callers disable the
// location-share affordance instead of failing a send.
var ErrUnavailable = errors.New("location unavailable")

type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Provider mirrors the platform's getCurrentPosition call.
type Provider interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// StaticProvider serves a fixed position from configuration, standing in
// for a real GPS source. Unconfigured (empty lat/lon) means unavailable.
type StaticProvider struct {
	pos *Position
}

func NewStaticProvider(lat, lon string) *StaticProvider {
	if lat == "" || lon == "" {
		return &StaticProvider{}
	}
	la, err1 := strconv.ParseFloat(lat, 64)
	lo, err2 := strconv.ParseFloat(lon, 64)
	if err1 != nil || err2 != nil {
		return &StaticProvider{}
	}
	return &StaticProvider{pos: &Position{Lat: la, Lon: lo}}
}

func (p *StaticProvider) CurrentPosition(ctx context.Context) (Position, error) {
	if p.pos == nil {
		return Position{}, ErrUnavailable
	}
	return *p.pos, nil
}

// FormatMessage renders the position as the chat text the share sends.
func FormatMessage(p Position) string {
	return fmt.Sprintf("Mi ubicación: Latitud:%v, Longitud:%v", p.Lat, p.Lon)
}
