package state

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"cryptvault/storage"
)

type counter struct{ value int }

func (c *counter) Snapshot() any      { return c.value }
func (c *counter) Revert(snapshot any) { c.value = snapshot.(int) }

func TestAtomicRevertsOnError(t *testing.T) {
	j := NewJournal()
	c := &counter{value: 1}
	j.Register(c)

	errBoom := errors.New("boom")
	err := j.Atomic(func() error {
		c.value = 5
		return j.Atomic(func() error {
			c.value = 9
			return errBoom
		})
	})
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, 1, c.value)
	require.False(t, j.InUnit())
}

func TestAtomicRevertsOnPanic(t *testing.T) {
	j := NewJournal()
	c := &counter{value: 3}
	j.Register(c)

	require.Panics(t, func() {
		_ = j.Atomic(func() error {
			c.value = 4
			panic("explode")
		})
	})
	require.Equal(t, 3, c.value)
}

func TestDeferredRunsOnlyOnCommit(t *testing.T) {
	j := NewJournal()
	ran := 0
	err := j.Atomic(func() error {
		j.Defer(func() { ran++ })
		return errors.New("fail")
	})
	require.Error(t, err)
	require.Zero(t, ran)

	require.NoError(t, j.Exec(func() error {
		j.Defer(func() { ran++ })
		require.Zero(t, ran)
		return nil
	}))
	require.Equal(t, 1, ran)
}

func TestCommitHookFailureReverts(t *testing.T) {
	j := NewJournal()
	c := &counter{}
	j.Register(c)
	j.OnCommit(func() error { return errors.New("disk full") })

	err := j.Atomic(func() error {
		c.value = 7
		return nil
	})
	require.Error(t, err)
	require.Zero(t, c.value)
}

func TestRegisterInsideFailedUnitIsDropped(t *testing.T) {
	j := NewJournal()
	outer := &counter{value: 1}
	j.Register(outer)

	err := j.Atomic(func() error {
		j.Register(&counter{value: 2})
		outer.value = 2
		return errors.New("abort")
	})
	require.Error(t, err)
	require.Equal(t, 1, outer.value)
	require.Len(t, j.components, 1)
}

func TestRegistryDeterministicAddresses(t *testing.T) {
	r := NewRegistry()
	deployer := common.HexToAddress("0x6ca3052E6D4b46c3437FA4C7235A0907805aaeC8")
	first := r.NextAddress(deployer)
	second := r.NextAddress(deployer)
	require.NotEqual(t, first, second)
	require.Equal(t, uint64(2), r.Nonce(deployer))

	require.NoError(t, r.Register(first, "vault"))
	require.ErrorIs(t, r.Register(first, "again"), ErrAddressInUse)

	got, err := r.Lookup(first)
	require.NoError(t, err)
	require.Equal(t, "vault", got)

	_, err = r.Lookup(second)
	require.ErrorIs(t, err, ErrUnknownContract)

	snap := r.Snapshot()
	require.NoError(t, r.Register(second, "strategy"))
	r.Revert(snap)
	_, err = r.Lookup(second)
	require.ErrorIs(t, err, ErrUnknownContract)
}

type record struct {
	Name  string
	Count uint64
}

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(storage.NewMemDB())
	ok, err := s.KVGet([]byte("missing"), &record{})
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.KVPut([]byte("r"), record{Name: "crypt", Count: 3}))
	var out record
	ok, err = s.KVGet([]byte("r"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record{Name: "crypt", Count: 3}, out)

	require.NoError(t, s.KVDelete([]byte("r")))
	ok, err = s.KVGet([]byte("r"), &out)
	require.NoError(t, err)
	require.False(t, ok)
}
