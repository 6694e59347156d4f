package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/loykin/herdsman"
)

// command bundles the local supervisor construction shared by subcommands.
type command struct {
	global *GlobalFlags
}

// loadConfig resolves the effective configuration from --config and
// --base-dir. A base-dir flag overrides the file value.
func (c command) loadConfig() (*herdsman.Config, error) {
	var conf *herdsman.Config
	if c.global.ConfigPath != "" {
		loaded, err := herdsman.LoadConfig(c.global.ConfigPath)
		if err != nil {
			return nil, err
		}
		conf = loaded
	} else {
		conf = herdsman.DefaultConfig()
	}
	if c.global.BaseDir != "" {
		conf.BaseDir = c.global.BaseDir
	}
	if conf.BaseDir == "" {
		return nil, fmt.Errorf("base directory required: pass --base-dir or set base_dir in the config file")
	}
	conf.Normalize()
	return conf, nil
}

// local builds a one-shot supervisor with a fresh catalog. The caller must
// Close it.
func (c command) local() (*herdsman.Supervisor, error) {
	conf, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	sup, err := herdsman.New(conf, herdsman.NewLogger(conf))
	if err != nil {
		return nil, err
	}
	if _, err := sup.Rescan(); err != nil {
		_ = sup.Close()
		return nil, err
	}
	return sup, nil
}

func printProfiles(profiles []herdsman.ProfileStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSTATE\tPID\tALIAS\tDIR")
	for _, p := range profiles {
		pid := ""
		if p.PID != 0 {
			pid = fmt.Sprintf("%d", p.PID)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.State, pid, p.Alias, p.Dir)
	}
	_ = w.Flush()
}

func printResults(results []herdsman.ProfileResult) {
	for _, r := range results {
		status := "ok"
		if !r.OK {
			status = "failed"
		}
		if r.Msg != "" {
			fmt.Printf("%s: %s (%s)\n", r.Name, status, r.Msg)
		} else {
			fmt.Printf("%s: %s\n", r.Name, status)
		}
	}
}

// Scan runs one discovery pass and prints the catalog without touching any
// daemon.
func (c command) Scan() error {
	sup, err := c.local()
	if err != nil {
		return err
	}
	defer func() { _ = sup.Close() }()
	profiles := sup.Profiles(context.Background())
	fmt.Printf("%d profiles under base directory\n", len(profiles))
	printProfiles(profiles)
	return nil
}

// Status lists profiles, either via the daemon API or a local scan pass.
func (c command) Status(flags ProfileFlags) error {
	if flags.APIUrl != "" {
		client := NewAPIClient(flags.APIUrl, flags.APITimeout)
		profiles, err := client.Profiles()
		if err != nil {
			return err
		}
		printProfiles(profiles)
		return nil
	}
	sup, err := c.local()
	if err != nil {
		return err
	}
	defer func() { _ = sup.Close() }()
	printProfiles(sup.Profiles(context.Background()))
	return nil
}

func (c command) Open(flags ProfileFlags) error {
	if flags.Key == "" {
		return fmt.Errorf("--key required")
	}
	var res herdsman.Result
	var err error
	if flags.APIUrl != "" {
		res, err = NewAPIClient(flags.APIUrl, flags.APITimeout).Open(flags.Key)
	} else {
		var sup *herdsman.Supervisor
		sup, err = c.local()
		if err != nil {
			return err
		}
		defer func() { _ = sup.Close() }()
		res, err = sup.Open(flags.Key)
	}
	if err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("open failed: %s", res.Msg)
	}
	fmt.Println("opened")
	return nil
}

func (c command) Kill(flags ProfileFlags) error {
	if flags.Key == "" {
		return fmt.Errorf("--key required")
	}
	var res herdsman.Result
	var err error
	if flags.APIUrl != "" {
		res, err = NewAPIClient(flags.APIUrl, flags.APITimeout).Kill(flags.Key, flags.Force)
	} else {
		var sup *herdsman.Supervisor
		sup, err = c.local()
		if err != nil {
			return err
		}
		defer func() { _ = sup.Close() }()
		res, err = sup.Terminate(context.Background(), flags.Key, flags.Force)
	}
	if err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("kill failed: %s", res.Msg)
	}
	fmt.Println("stopped")
	return nil
}

func (c command) Restart(flags ProfileFlags) error {
	if flags.Key == "" {
		return fmt.Errorf("--key required")
	}
	var res herdsman.Result
	var err error
	if flags.APIUrl != "" {
		res, err = NewAPIClient(flags.APIUrl, flags.APITimeout).Restart(flags.Key)
	} else {
		var sup *herdsman.Supervisor
		sup, err = c.local()
		if err != nil {
			return err
		}
		defer func() { _ = sup.Close() }()
		res, err = sup.Restart(context.Background(), flags.Key)
	}
	if err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("restart failed: %s", res.Msg)
	}
	fmt.Println("restarted")
	return nil
}

func (c command) OpenAll(flags OpenAllFlags) error {
	var results []herdsman.ProfileResult
	var err error
	if flags.APIUrl != "" {
		results, err = NewAPIClient(flags.APIUrl, flags.APITimeout).OpenAll(flags.MaxParallel)
	} else {
		var sup *herdsman.Supervisor
		sup, err = c.local()
		if err != nil {
			return err
		}
		defer func() { _ = sup.Close() }()
		results = sup.OpenAll(context.Background(), flags.MaxParallel)
	}
	if err != nil {
		return err
	}
	printResults(results)
	return nil
}

func (c command) KillAll(flags ProfileFlags) error {
	var results []herdsman.ProfileResult
	var err error
	if flags.APIUrl != "" {
		results, err = NewAPIClient(flags.APIUrl, flags.APITimeout).KillAll()
	} else {
		var sup *herdsman.Supervisor
		sup, err = c.local()
		if err != nil {
			return err
		}
		defer func() { _ = sup.Close() }()
		results = sup.KillAll(context.Background())
	}
	if err != nil {
		return err
	}
	printResults(results)
	return nil
}

func (c command) Alias(flags AliasFlags) error {
	if flags.Key == "" {
		return fmt.Errorf("--key required")
	}
	if flags.APIUrl != "" {
		return NewAPIClient(flags.APIUrl, flags.APITimeout).SetAlias(flags.Key, flags.Name)
	}
	sup, err := c.local()
	if err != nil {
		return err
	}
	defer func() { _ = sup.Close() }()
	return sup.SetAlias(context.Background(), flags.Key, flags.Name)
}

func (c command) Identify(flags ProfileFlags) error {
	if flags.Key == "" {
		return fmt.Errorf("--key required")
	}
	var suggestion string
	var err error
	if flags.APIUrl != "" {
		suggestion, err = NewAPIClient(flags.APIUrl, flags.APITimeout).Identify(flags.Key)
	} else {
		var sup *herdsman.Supervisor
		sup, err = c.local()
		if err != nil {
			return err
		}
		defer func() { _ = sup.Close() }()
		suggestion, err = sup.Identify(context.Background(), flags.Key)
	}
	if err != nil {
		return err
	}
	if suggestion == "" {
		fmt.Println("no account hint visible")
		return nil
	}
	fmt.Println(suggestion)
	return nil
}
