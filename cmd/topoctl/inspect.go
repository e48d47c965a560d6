package main

import (
	"fmt"

	"github.com/pkg/errors"
	"go.topoplan.dev/core/diff"
	"go.topoplan.dev/core/rules"
	"go.topoplan.dev/core/topology"
	"go.topoplan.dev/core/topospec"
)

type cmdValidate struct {
	Topology string `long:"topology" short:"t" required:"true" description:"Path of the topology document"`
	Deployed bool   `long:"deployed" description:"Also run checks which apply to deployed topologies (admins, node types, directory sizes)"`
	Format   string `long:"format" short:"f" default:"table" choice:"table" choice:"text" description:"Output format"`
}

func (cmd *cmdValidate) Execute([]string) error {
	startup()

	var m, err = topospec.Load(fs, cmd.Topology)
	if err != nil {
		return err
	}
	var r = rules.Validate(m.Topology, m.Params, cmd.Deployed)

	if cmd.Format == "text" {
		fmt.Fprint(stdout, r.String())
	} else if err = r.WriteTable(stdout); err != nil {
		return err
	}
	if n := r.NumViolations(); n != 0 {
		return errors.Errorf("topology %s has %d violations", cmd.Topology, n)
	}
	return nil
}

// transitionConfig names a pair of topology documents.
type transitionConfig struct {
	From string `long:"from" required:"true" description:"Path of the current topology document"`
	To   string `long:"to" required:"true" description:"Path of the proposed topology document"`
}

func (cfg transitionConfig) load() (from, to *topospec.Model, err error) {
	if from, err = topospec.Load(fs, cfg.From); err != nil {
		return nil, nil, err
	} else if to, err = topospec.Load(fs, cfg.To); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

type cmdTransition struct {
	transitionConfig
	Failover bool `long:"failover" description:"The transition is a failover, which may reduce primary replication"`
}

func (cmd *cmdTransition) Execute([]string) error {
	startup()

	var from, to, err = cmd.load()
	if err != nil {
		return err
	}
	if err = rules.ValidateTransition(from.Topology, to.Topology, to.Params, cmd.Failover); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Transition from %s to %s is permitted.\n", cmd.From, cmd.To)
	return nil
}

type cmdDiff struct {
	transitionConfig
	Verbose  bool `long:"verbose" short:"v" description:"Show changes of each shard"`
	Validate bool `long:"validate" description:"Validate the proposed topology"`
}

func (cmd *cmdDiff) Execute([]string) error {
	startup()

	var from, to, err = cmd.load()
	if err != nil {
		return err
	}
	var cand = topology.NewCandidate(to.Name, to.Topology)
	for _, a := range from.Params.Copy().Admins {
		if !hasAdmin(to.Params, a.ID) {
			cand.RemovedAdmins = append(cand.RemovedAdmins, a.ID)
		}
	}
	var d = diff.Compute(from.Topology, from.Name, cand, to.Params, diff.Options{Validate: cmd.Validate})
	fmt.Fprint(stdout, d.Display(cmd.Verbose))
	return nil
}

func hasAdmin(params *topology.Parameters, id topology.AdminID) bool {
	for _, a := range params.Admins {
		if a.ID == id {
			return true
		}
	}
	return false
}
