package deploy

import (
	"fmt"

	"cryptvault/core/state"
)

var metaKey = []byte("deploy/meta")

type metaRecord struct {
	Strategies uint64
}

type persistable interface {
	Persist(store *state.Store) error
	Load(store *state.Store) (bool, error)
}

func (env *Env) persistables(dep *Deployment) []persistable {
	out := []persistable{env.Ledger}
	if p, ok := env.Farm.(persistable); ok {
		out = append(out, p)
	}
	out = append(out, dep.Vault)
	for _, s := range dep.Retired {
		out = append(out, s)
	}
	return append(out, dep.Strategy)
}

// Persist writes the ledger, the farm when it supports persistence, the
// vault and every strategy ever deployed for it as one batch, so the backend
// holds either the previous snapshot or the new one.
func Persist(env *Env, dep *Deployment, store *state.Store) error {
	return store.Batch(func(batch *state.Store) error {
		for _, p := range env.persistables(dep) {
			if err := p.Persist(batch); err != nil {
				return err
			}
		}
		meta := metaRecord{Strategies: uint64(len(dep.Retired) + 1)}
		if err := batch.KVPut(metaKey, meta); err != nil {
			return fmt.Errorf("deploy persist: %w", err)
		}
		return nil
	})
}

// Load rebuilds a deployment previously written by Persist. It reports false
// when the store holds no deployment.
func Load(env *Env, cfg Config, store *state.Store) (*Deployment, bool, error) {
	var meta metaRecord
	ok, err := store.KVGet(metaKey, &meta)
	if err != nil || !ok {
		return nil, false, err
	}
	dep, err := Attach(env, cfg, int(meta.Strategies))
	if err != nil {
		return nil, false, err
	}
	for _, p := range env.persistables(dep) {
		if _, err := p.Load(store); err != nil {
			return nil, false, fmt.Errorf("deploy load: %w", err)
		}
	}
	return dep, true, nil
}
