package resolver

import (
	"context"
	"fmt"

	"github.com/weezy20/zv/internal/errs"
	"github.com/weezy20/zv/internal/fetch"
	"github.com/weezy20/zv/internal/index"
	"github.com/weezy20/zv/internal/logger"
	"github.com/weezy20/zv/internal/platform"
	"github.com/weezy20/zv/internal/store"
	"github.com/weezy20/zv/internal/version"
)

// Mode governs how far Resolve may go to produce a toolchain.
type Mode int

const (
	// MustExistLocally only consults the store; nothing is downloaded.
	MustExistLocally Mode = iota
	// InstallIfMissing downloads when the store has no match.
	InstallIfMissing
	// InstallAlways re-resolves against the index even when a local match
	// exists, installing whatever it names.
	InstallAlways
)

// Result is a resolved toolchain plus advisory state. OutOfDate means a
// newer master exists upstream than the local install that was returned.
type Result struct {
	Toolchain store.Toolchain
	OutOfDate bool
}

// Resolver is the central algorithm: spec + store + cache + network in,
// ready-to-execute toolchain out. It never touches the active pointer; the
// caller decides what an install means.
type Resolver struct {
	Store       *store.Store
	Cache       *index.Cache
	Downloader  *fetch.Downloader
	Plat        platform.Descriptor
	ForceOrigin bool
}

func (r *Resolver) Resolve(ctx context.Context, spec version.Spec, mode Mode) (Result, error) {
	switch spec.Kind {
	case version.KindSemver:
		return r.resolveConcrete(ctx, spec, version.ResolvedSemver(spec.Normalized()), mode)
	case version.KindMasterPinned:
		// Pinned nightlies resolve against the store alone: the index only
		// carries a single master entry.
		tc, ok := r.Store.Find(version.ResolvedMaster(spec.Dev))
		if !ok {
			return Result{}, fmt.Errorf("%w: nightly %s is not installed", errs.ErrUnknownVersion, spec.Dev)
		}
		return Result{Toolchain: tc}, nil
	case version.KindMaster, version.KindStable, version.KindLatest:
		return r.resolveMoving(ctx, spec, mode)
	}
	return Result{}, errs.BadSpec(spec.String())
}

// resolveConcrete handles specs that name a version outright.
func (r *Resolver) resolveConcrete(ctx context.Context, spec version.Spec, rv version.Resolved, mode Mode) (Result, error) {
	if tc, ok := r.Store.Find(rv); ok && mode != InstallAlways {
		return Result{Toolchain: tc}, nil
	}
	if mode == MustExistLocally {
		return Result{}, fmt.Errorf("%w: %s is not installed", errs.ErrUnknownVersion, rv)
	}

	entry, resolved, err := r.Cache.Lookup(ctx, spec, r.Plat.Triple())
	if err != nil {
		return Result{}, err
	}
	return r.install(ctx, entry, resolved)
}

// resolveMoving handles the master/stable/latest tags, which are queries
// over the index rather than storable versions.
func (r *Resolver) resolveMoving(ctx context.Context, spec version.Spec, mode Mode) (Result, error) {
	if mode == MustExistLocally {
		return r.resolveMovingLocal(ctx, spec)
	}

	entry, rv, err := r.Cache.Lookup(ctx, spec, r.Plat.Triple())
	if err != nil {
		return Result{}, err
	}
	if tc, ok := r.Store.Find(rv); ok && mode != InstallAlways {
		return Result{Toolchain: tc}, nil
	}
	return r.install(ctx, entry, rv)
}

// resolveMovingLocal satisfies a moving tag from the store, with at most a
// cheap network check when the cache has gone stale. A newer upstream master
// does not replace the local install here; it only flags the result.
func (r *Resolver) resolveMovingLocal(ctx context.Context, spec version.Spec) (Result, error) {
	chains, _, err := r.Store.Scan()
	if err != nil {
		return Result{}, err
	}

	var best store.Toolchain
	found := false
	wantMaster := spec.Kind == version.KindMaster
	for _, tc := range chains {
		if tc.Version.Master != wantMaster {
			continue
		}
		if !found || newerInstalled(tc, best) {
			best, found = tc, true
		}
	}
	if !found {
		return Result{}, fmt.Errorf("%w: no %s toolchain installed", errs.ErrUnknownVersion, spec)
	}

	res := Result{Toolchain: best}
	if idx := r.Cache.Load(); idx.Stale {
		if fresh, err := r.Cache.Refresh(ctx, false); err == nil {
			if rel, ok := fresh.Releases["master"]; ok && wantMaster && rel.Version != best.Version.Value {
				res.OutOfDate = true
				logger.Warn("installed master %s is behind upstream %s", best.Version, rel.Version)
			}
		} else {
			logger.Debug("skipping freshness check: %v", err)
		}
	}
	return res, nil
}

func newerInstalled(a, b store.Toolchain) bool {
	if a.Version.Master != b.Version.Master {
		return false
	}
	if a.Version.Master {
		return a.InstalledAt.After(b.InstalledAt)
	}
	return version.CompareRelease(a.Version.Value, b.Version.Value) > 0
}

// install takes the store lock for the duration of the download so mutating
// commands stay serialized across processes.
func (r *Resolver) install(ctx context.Context, entry index.Entry, rv version.Resolved) (Result, error) {
	unlock, err := r.Store.Lock(ctx)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	r.Store.SweepOrphans()

	tc, err := r.Downloader.FetchAndInstall(ctx, entry, rv, r.ForceOrigin)
	if err != nil {
		return Result{}, err
	}
	logger.Success("installed zig %s", rv)
	return Result{Toolchain: tc}, nil
}
