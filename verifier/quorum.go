package verifier

import (
	"github.com/nimble-ledger/nimble/receipt"
	"github.com/nimble-ledger/nimble/signing"
)

// countDistinctVerified counts receipts at viewIndex from distinct members
// whose signature verify reports true, deduplicating by endorser public
// key the same way receipt.Set.dedupByEndorser does. Used where, unlike
// receipt.Quorum, each receipt signs a different per-endorser message
// (e.g. append's per-endorser nonce) so a single shared digest can't be
// checked directly.
func countDistinctVerified(receipts receipt.Set, viewIndex uint64, members []signing.PublicKey, verify func(receipt.Receipt) bool) int {
	memberSet := make(map[string]struct{}, len(members))
	for _, m := range members {
		memberSet[string(m.Bytes())] = struct{}{}
	}

	seen := make(map[string]struct{}, len(receipts))
	count := 0
	for _, r := range receipts {
		if r.ViewIndex != viewIndex {
			continue
		}
		key := string(r.Endorser.Bytes())
		if _, ok := memberSet[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if !verify(r) {
			continue
		}
		seen[key] = struct{}{}
		count++
	}
	return count
}
