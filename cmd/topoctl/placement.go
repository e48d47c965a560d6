package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.topoplan.dev/core/builder"
	"go.topoplan.dev/core/diff"
	"go.topoplan.dev/core/rules"
	"go.topoplan.dev/core/topology"
	"go.topoplan.dev/core/topospec"
)

// placementConfig is common configuration of commands producing a Candidate.
type placementConfig struct {
	Topology   string `long:"topology" short:"t" required:"true" description:"Path of the topology document"`
	Output     string `long:"output" short:"o" description:"Path to which the candidate document is written"`
	Overwrite  bool   `long:"overwrite" description:"Overwrite an existing --output document"`
	Name       string `long:"name" description:"Name of the candidate. A name is generated if not set"`
	Partitions int    `long:"partitions" description:"Number of partitions. If zero, the number of the topology document is used"`
	Verbose    bool   `long:"verbose" short:"v" description:"Show changes of each shard"`
	Audit      bool   `long:"audit" description:"Show the audit trail of placement decisions"`
}

// run |op| against a Builder of the configured topology document, then
// display and optionally store the resulting Candidate.
func (cfg placementConfig) run(op func(*builder.Builder) (*topology.Candidate, error), opts ...builder.Option) error {
	startup()

	var m, err = topospec.Load(fs, cfg.Topology)
	if err != nil {
		return err
	}
	if cfg.Partitions != 0 {
		m.NumPartitions = cfg.Partitions
	}
	if cfg.Output != "" && !cfg.Overwrite {
		if exists, err := topospec.Exists(fs, cfg.Output); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("output %s exists (use --overwrite to replace it)", cfg.Output)
		}
	}

	b, err := builder.New(m.Topology, cfg.Name, m.Pool, m.NumPartitions, m.Params, opts...)
	if err != nil {
		return err
	}
	cand, err := op(b)
	if err != nil {
		return err
	}
	if err = rules.ValidateTransition(m.Topology, cand.Topology, m.Params, false); err != nil {
		return err
	}

	var d = diff.Compute(m.Topology, m.Name, cand, m.Params, diff.Options{Validate: true})
	fmt.Fprint(stdout, d.Display(cfg.Verbose))

	if cfg.Audit {
		fmt.Fprint(stdout, cand.ShowAudit())
	}
	if cfg.Output != "" {
		if err = topospec.Store(fs, cfg.Output, topospec.CandidateModel(m, cand)); err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"candidate": cand.Name,
			"output":    cfg.Output,
		}).Info("wrote candidate")
	}
	return nil
}

type cmdBuild struct {
	placementConfig
}

func (cmd *cmdBuild) Execute([]string) error {
	return cmd.run((*builder.Builder).Build)
}

type cmdRebalance struct {
	placementConfig
	Zone string `long:"zone" description:"Zone to rebalance, eg 'zn1'. All zones are rebalanced if not set"`
}

func (cmd *cmdRebalance) Execute([]string) error {
	var zone topology.ZoneID
	if cmd.Zone != "" {
		var err error
		if zone, err = topology.ParseZoneID(cmd.Zone); err != nil {
			return err
		}
	}
	return cmd.run(func(b *builder.Builder) (*topology.Candidate, error) { return b.Rebalance(zone) })
}

type cmdContract struct {
	placementConfig
}

func (cmd *cmdContract) Execute([]string) error {
	return cmd.run((*builder.Builder).Contract, builder.ForContraction())
}

type cmdChangeRF struct {
	placementConfig
	Zone string `long:"zone" required:"true" description:"Zone to change, eg 'zn1'"`
	RF   int    `long:"rf" required:"true" description:"Replication factor of the zone"`
}

func (cmd *cmdChangeRF) Execute([]string) error {
	var zone, err = topology.ParseZoneID(cmd.Zone)
	if err != nil {
		return err
	}
	return cmd.run(func(b *builder.Builder) (*topology.Candidate, error) { return b.ChangeRepFactor(cmd.RF, zone) })
}

type cmdRemoveShard struct {
	placementConfig
	Shard string `long:"shard" required:"true" description:"Shard to remove, eg 'rg3'"`
}

func (cmd *cmdRemoveShard) Execute([]string) error {
	var shard, err = topology.ParseShardID(cmd.Shard)
	if err != nil {
		return err
	}
	return cmd.run(func(b *builder.Builder) (*topology.Candidate, error) { return b.RemoveFailedShard(shard) })
}
