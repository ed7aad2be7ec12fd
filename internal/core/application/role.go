package application

import "github.com/crosswap-network/crosswap-daemon/internal/core/domain"

// roleStrategy captures the points where maker and taker behavior diverge in
// the segment exchange. The asymmetry in how the next proof index is chosen
// after a verified receipt is preserved as observed in the deployed protocol:
// unifying the two without the release engine's exact index contract would
// risk breaking interoperability.
type roleStrategy interface {
	side() domain.Side
	// nextProofIndex returns the index of the proof to send after having
	// verified the counterparty proof at verifiedIndex.
	nextProofIndex(verifiedIndex int) int
	// sendsFinalProof reports whether this role still relays its proof for
	// the last verified index before extracting the counterparty secret.
	sendsFinalProof() bool
}

// makerRole leads the exchange by one index: after verifying the
// counterparty's proof at k it proves k+1, and at the last segment it
// extracts right away without sending anything further.
type makerRole struct{}

func (makerRole) side() domain.Side               { return domain.SideMaker }
func (makerRole) nextProofIndex(verified int) int { return verified + 1 }
func (makerRole) sendsFinalProof() bool           { return false }

// takerRole mirrors the maker: after verifying the proof at k it proves the
// same index k, including the final one, and only then extracts.
type takerRole struct{}

func (takerRole) side() domain.Side               { return domain.SideTaker }
func (takerRole) nextProofIndex(verified int) int { return verified }
func (takerRole) sendsFinalProof() bool           { return true }

func roleFor(side domain.Side) roleStrategy {
	if side == domain.SideMaker {
		return makerRole{}
	}
	return takerRole{}
}
