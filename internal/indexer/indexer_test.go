package indexer

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/block"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var (
	contract = util.Uint160{0xc0}
	owner    = util.Uint160{0x0a}
	sender   = util.Uint160{0x01}
	r1       = util.Uint160{0x02}
	r2       = util.Uint160{0x03}
)

type testChain struct {
	mtx    sync.Mutex
	blocks []*block.Block
	logs   map[util.Uint256]*result.ApplicationLog
}

func newTestChain() *testChain {
	return &testChain{logs: make(map[util.Uint256]*result.ApplicationLog)}
}

func (c *testChain) GetBlockCount() (uint32, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return uint32(len(c.blocks)), nil
}

func (c *testChain) GetBlockByIndex(index uint32) (*block.Block, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if int(index) >= len(c.blocks) {
		return nil, errors.New("unknown block")
	}
	return c.blocks[index], nil
}

func (c *testChain) GetApplicationLog(hash util.Uint256, _ *trigger.Type) (*result.ApplicationLog, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	aer, ok := c.logs[hash]
	if !ok {
		return nil, errors.New("unknown transaction")
	}
	return aer, nil
}

func (c *testChain) addBlock(events ...state.NotificationEvent) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	b := &block.Block{Header: block.Header{Index: uint32(len(c.blocks))}}

	if len(events) > 0 {
		tx := transaction.New([]byte{byte(len(c.blocks))}, 0)
		tx.Nonce = uint32(len(c.blocks))
		b.Transactions = append(b.Transactions, tx)

		c.logs[tx.Hash()] = &result.ApplicationLog{
			Container:     tx.Hash(),
			IsTransaction: true,
			Executions: []state.Execution{{
				Trigger: trigger.Application,
				VMState: vmstate.Halt,
				Events:  events,
			}},
		}
	}

	c.blocks = append(c.blocks, b)
}

func splitNotification(share, fee, charged int64) state.NotificationEvent {
	return state.NotificationEvent{
		ScriptHash: contract,
		Name:       "Split",
		Item: stackitem.NewArray([]stackitem.Item{
			stackitem.Make(sender.BytesBE()),
			stackitem.Make(r1.BytesBE()),
			stackitem.Make(r2.BytesBE()),
			stackitem.Make(owner.BytesBE()),
			stackitem.Make(share),
			stackitem.Make(fee),
			stackitem.Make(charged),
		}),
	}
}

func withdrawNotification(user util.Uint160, amount int64) state.NotificationEvent {
	return state.NotificationEvent{
		ScriptHash: contract,
		Name:       "Withdraw",
		Item: stackitem.NewArray([]stackitem.Item{
			stackitem.Make(user.BytesBE()),
			stackitem.Make(amount),
		}),
	}
}

type memStore struct {
	mtx     sync.Mutex
	cursors map[string]uint32
	blocks  []BlockRecords
	err     error
}

func newMemStore() *memStore {
	return &memStore{cursors: make(map[string]uint32)}
}

func (s *memStore) Cursor(_ context.Context, contract string) (uint32, bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	h, ok := s.cursors[contract]
	return h, ok, nil
}

func (s *memStore) SaveBlock(_ context.Context, contract string, b BlockRecords) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.err != nil {
		return s.err
	}
	s.blocks = append(s.blocks, b)
	s.cursors[contract] = b.Height
	return nil
}

func (s *memStore) saved() []BlockRecords {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]BlockRecords(nil), s.blocks...)
}

func newTestIndexer(t *testing.T, c *testChain, s Store, start uint32) *Indexer {
	x, err := New(Prm{
		Logger:       zaptest.NewLogger(t),
		Chain:        c,
		Contract:     contract,
		Store:        s,
		StartHeight:  start,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return x
}

func TestNew(t *testing.T) {
	_, err := New(Prm{Store: newMemStore(), PollInterval: time.Second})
	require.Error(t, err)
	_, err = New(Prm{Chain: newTestChain(), PollInterval: time.Second})
	require.Error(t, err)
	_, err = New(Prm{Chain: newTestChain(), Store: newMemStore()})
	require.Error(t, err)
}

func TestSync(t *testing.T) {
	c := newTestChain()
	c.addBlock()
	c.addBlock(splitNotification(49, 2, 100))
	c.addBlock(withdrawNotification(r1, 40))

	s := newMemStore()
	x := newTestIndexer(t, c, s, 1)

	n, err := x.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	blocks := s.saved()
	require.Len(t, blocks, 2)
	require.EqualValues(t, 1, blocks[0].Height)
	require.Len(t, blocks[0].Splits, 1)
	require.Empty(t, blocks[0].Withdraws)

	split := blocks[0].Splits[0]
	require.Equal(t, r1.StringLE(), split.Recipient1)
	require.Equal(t, "49", split.Share)
	require.Equal(t, "2", split.Fee)
	require.Equal(t, "100", split.Charged)
	require.Equal(t, c.blocks[1].Transactions[0].Hash().StringLE(), split.TxHash)

	require.EqualValues(t, 2, blocks[1].Height)
	require.Equal(t, []WithdrawRecord{{
		Height: 2,
		TxHash: c.blocks[2].Transactions[0].Hash().StringLE(),
		Index:  0,
		User:   r1.StringLE(),
		Amount: "40",
	}}, blocks[1].Withdraws)

	n, err = x.Sync(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	c.addBlock()
	n, err = x.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, s.saved(), 3)
}

func TestSyncStoreFailure(t *testing.T) {
	c := newTestChain()
	c.addBlock(splitNotification(49, 2, 100))

	s := newMemStore()
	s.err = errors.New("database is gone")

	_, err := newTestIndexer(t, c, s, 0).Sync(context.Background())
	require.ErrorIs(t, err, s.err)

	_, ok, _ := s.Cursor(context.Background(), contract.StringLE())
	require.False(t, ok)
}

func TestRun(t *testing.T) {
	c := newTestChain()
	c.addBlock(splitNotification(49, 2, 100))

	s := newMemStore()
	x := newTestIndexer(t, c, s, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- x.Run(ctx) }()

	require.Eventually(t, func() bool { return len(s.saved()) == 1 }, time.Second, 5*time.Millisecond)

	c.addBlock(withdrawNotification(r2, 49))
	require.Eventually(t, func() bool { return len(s.saved()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestGormStore(t *testing.T) {
	dsn := os.Getenv("SPLITTER_MYSQL_DSN")
	if dsn == "" {
		t.Skip("SPLITTER_MYSQL_DSN is not set")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	s, err := NewGormStore(db)
	require.NoError(t, err)

	var u util.Uint160
	binary.LittleEndian.PutUint64(u[:], uint64(time.Now().UnixNano()))
	key := u.StringLE()

	_, ok, err := s.Cursor(context.Background(), key)
	require.NoError(t, err)
	require.False(t, ok)

	b := BlockRecords{
		Height: 5,
		Splits: []SplitRecord{{
			Height: 5, TxHash: util.Uint256{1}.StringLE(), Index: 0,
			Sender: sender.StringLE(), Recipient1: r1.StringLE(), Recipient2: r2.StringLE(), Owner: owner.StringLE(),
			Share: "49", Fee: "2", Charged: "100",
		}},
	}
	require.NoError(t, s.SaveBlock(context.Background(), key, b))
	// duplicates are ignored
	b.Splits[0].ID = 0
	require.NoError(t, s.SaveBlock(context.Background(), key, b))

	h, ok, err := s.Cursor(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 5, h)
}
