package matcher

import (
	"os"
	"strings"

	"github.com/loykin/herdsman/internal/catalog"
	"github.com/loykin/herdsman/internal/procscan"
)

const pathSep = string(os.PathSeparator)

// Snapshot is one atomic mapping of profile key to observed pid, produced by
// a single matching pass over a single process enumeration. A pid of 0 means
// no process was attributed to the profile. Every known key is present.
type Snapshot map[string]int

// Match attributes live processes to profiles. Rules in priority order:
//
//  1. process executable path equals the profile's executable path
//  2. process working directory equals the profile's folder
//  3. process executable path lies under the profile's folder
//
// Tiers are evaluated globally: all profiles go through tier 1 before any
// profile is considered for tier 2, so a slot filled by a higher tier is
// never overwritten by a lower one within the same pass. Each profile is
// resolved independently against the full record list; one process may
// satisfy several profiles.
func Match(profiles []*catalog.Profile, records []procscan.Record) Snapshot {
	snap := make(Snapshot, len(profiles))
	for _, p := range profiles {
		snap[p.Key] = 0
	}

	byExe := make(map[string][]*catalog.Profile, len(profiles))
	for _, p := range profiles {
		k := catalog.NormKey(p.Exe)
		byExe[k] = append(byExe[k], p)
	}

	// tier 1: exact executable path
	for _, r := range records {
		if r.PID <= 0 || r.Exe == "" {
			continue
		}
		for _, p := range byExe[catalog.NormKey(r.Exe)] {
			if snap[p.Key] == 0 {
				snap[p.Key] = r.PID
			}
		}
	}

	// tier 2: working directory equals profile folder
	byCwd := make(map[string][]*catalog.Profile, len(profiles))
	for _, p := range profiles {
		if snap[p.Key] == 0 {
			byCwd[p.Key] = append(byCwd[p.Key], p)
		}
	}
	for _, r := range records {
		if r.PID <= 0 || r.Cwd == "" {
			continue
		}
		for _, p := range byCwd[catalog.NormKey(r.Cwd)] {
			if snap[p.Key] == 0 {
				snap[p.Key] = r.PID
			}
		}
	}

	// tier 3: executable under the profile folder
	for _, r := range records {
		if r.PID <= 0 || r.Exe == "" {
			continue
		}
		exe := catalog.NormKey(r.Exe)
		for _, p := range profiles {
			if snap[p.Key] == 0 && strings.HasPrefix(exe, p.Key+pathSep) {
				snap[p.Key] = r.PID
				break
			}
		}
	}
	return snap
}

// Unknown returns the degraded snapshot used when process inspection is
// unavailable: every profile present, every pid 0.
func Unknown(profiles []*catalog.Profile) Snapshot {
	snap := make(Snapshot, len(profiles))
	for _, p := range profiles {
		snap[p.Key] = 0
	}
	return snap
}
