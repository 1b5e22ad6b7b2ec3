package settlement

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Network names reported by adapters.
const (
	NetworkEthereum = "ETHEREUM"
	NetworkBitcoin  = "BITCOIN"
	NetworkPolygon  = "POLYGON"
)

// Adapter produces and verifies settlement references for one network.
// References are simulated; no adapter performs network I/O.
type Adapter interface {
	Settle(ctx context.Context, walletAddress string, amount decimal.Decimal, network string) (string, error)
	Verify(reference string, network string) bool
	NetworkName() string
}

// WalletAddress returns the simulated wallet address of a user.
func WalletAddress(userID string) string {
	return "user_" + userID + "_wallet"
}

type simulatedAdapter struct {
	name   string
	unit   string
	format func(digest string) string
	verify func(reference string) bool
	logger logrus.FieldLogger
}

func (a *simulatedAdapter) Settle(ctx context.Context, walletAddress string, amount decimal.Decimal, network string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	digest, err := digest(walletAddress, amount, network)
	if err != nil {
		return "", fmt.Errorf("settlement: %s digest: %w", a.name, err)
	}
	a.logger.WithFields(logrus.Fields{
		"network": a.name,
		"wallet":  walletAddress,
	}).Infof("Processing %s payment: %s %s", a.name, amount.String(), a.unit)
	return a.format(digest), nil
}

// Verify ignores network and checks the reference shape only.
func (a *simulatedAdapter) Verify(reference string, _ string) bool {
	a.logger.WithField("network", a.name).Debugf("verifying reference %s", reference)
	return reference != "" && a.verify(reference)
}

func (a *simulatedAdapter) NetworkName() string {
	return a.name
}

// NewEthereumAdapter returns the Ethereum adapter.
func NewEthereumAdapter(logger logrus.FieldLogger) Adapter {
	return &simulatedAdapter{
		name:   NetworkEthereum,
		unit:   "ETH",
		format: func(d string) string { return "0x" + d + "eth" },
		verify: func(ref string) bool { return strings.HasPrefix(ref, "0x") },
		logger: orStandard(logger),
	}
}

// NewBitcoinAdapter returns the Bitcoin adapter.
func NewBitcoinAdapter(logger logrus.FieldLogger) Adapter {
	return &simulatedAdapter{
		name:   NetworkBitcoin,
		unit:   "BTC",
		format: func(d string) string { return "btc_" + d },
		verify: func(ref string) bool { return strings.HasPrefix(ref, "btc_") },
		logger: orStandard(logger),
	}
}

// NewPolygonAdapter returns the Polygon adapter.
func NewPolygonAdapter(logger logrus.FieldLogger) Adapter {
	return &simulatedAdapter{
		name:   NetworkPolygon,
		unit:   "MATIC",
		format: func(d string) string { return "0x" + d + "poly" },
		verify: func(ref string) bool { return strings.Contains(ref, "poly") },
		logger: orStandard(logger),
	}
}

func digest(walletAddress string, amount decimal.Decimal, network string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(walletAddress))
	h.Write([]byte{0})
	h.Write([]byte(amount.String()))
	h.Write([]byte{0})
	h.Write([]byte(network))
	h.Write([]byte{0})
	h.Write(nonce)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func orStandard(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger == nil {
		return logrus.StandardLogger()
	}
	return logger
}
