package scan

import (
	"fmt"

	"github.com/nspcc-dev/splitter-contract/internal/ledger"
)

// Apply changes the ledger according to the block notifications.
func Apply(l *ledger.Ledger, b Block) error {
	for _, ev := range b.Events {
		var err error

		switch {
		case ev.Split != nil:
			err = l.ApplySplit(ev.Split.Recipient1, ev.Split.Recipient2, ev.Split.Owner, ev.Split.Share, ev.Split.Fee)
		case ev.Withdraw != nil:
			err = l.ApplyWithdraw(ev.Withdraw.User, ev.Withdraw.Amount)
		}

		if err != nil {
			return fmt.Errorf("block #%d, tx %s, notification #%d: %w", b.Height, ev.Tx.StringLE(), ev.Index, err)
		}
	}

	return nil
}
