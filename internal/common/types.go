package common

import (
	"fmt"
	"strings"
)

// Asset is a currency or any other fungible instrument leg, identified by its
// code (e.g. "AUD").
type Asset string

const (
	AUD Asset = "AUD"
	CAD Asset = "CAD"
	CHF Asset = "CHF"
	EUR Asset = "EUR"
	GBP Asset = "GBP"
	JPY Asset = "JPY"
	NZD Asset = "NZD"
	USD Asset = "USD"
)

func (a Asset) String() string {
	return string(a)
}

// ParseAsset reads an asset code in any case.
func ParseAsset(s string) (Asset, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if code == "" {
		return "", fmt.Errorf("%w: empty asset", ErrValidation)
	}
	return Asset(code), nil
}

// AssetPair is a tradable instrument. Price is quoted as units of Terms per
// one unit of Base. The order of the two legs is significant and never
// normalised: AUD/USD and USD/AUD are different instruments.
type AssetPair struct {
	Base  Asset
	Terms Asset
}

// NewAssetPair builds an instrument, rejecting a pair whose legs are the same
// asset.
func NewAssetPair(base, terms Asset) (AssetPair, error) {
	if base == "" || terms == "" {
		return AssetPair{}, fmt.Errorf("%w: empty asset in pair %q/%q", ErrValidation, base, terms)
	}
	if base == terms {
		return AssetPair{}, fmt.Errorf("%w: base and terms are both %s", ErrValidation, base)
	}
	return AssetPair{Base: base, Terms: terms}, nil
}

// MustAssetPair is NewAssetPair for static, known-good pairs.
func MustAssetPair(base, terms Asset) AssetPair {
	pair, err := NewAssetPair(base, terms)
	if err != nil {
		panic(err)
	}
	return pair
}

// ParseAssetPair reads the "BASE/TERMS" notation.
func ParseAssetPair(s string) (AssetPair, error) {
	base, terms, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return AssetPair{}, fmt.Errorf("%w: instrument %q is not BASE/TERMS", ErrValidation, s)
	}
	return NewAssetPair(Asset(strings.ToUpper(strings.TrimSpace(base))), Asset(strings.ToUpper(strings.TrimSpace(terms))))
}

// Inverse returns the same instrument quoted the other way round.
func (p AssetPair) Inverse() AssetPair {
	return AssetPair{Base: p.Terms, Terms: p.Base}
}

func (p AssetPair) String() string {
	return string(p.Base) + "/" + string(p.Terms)
}

type Side int

const (
	// Buy acquires the base asset and pays away the terms asset.
	Buy Side = iota
	// Sell pays away the base asset and acquires the terms asset.
	Sell
)

// Opposite returns the side a counterparty takes.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// ParseSide reads "BUY"/"SELL" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	}
	return Buy, fmt.Errorf("%w: unknown side %q", ErrValidation, s)
}
