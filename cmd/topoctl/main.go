package main

import (
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/spf13/afero"
	mbp "go.topoplan.dev/core/mainboilerplate"
)

const iniFilename = "topoctl.ini"

// Config common to all topoctl commands.
var baseCfg = new(struct {
	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Diagnostics" namespace:"diag" env-namespace:"DIAG"`
})

// Filesystem of topology documents, and destination of command output.
var (
	fs     afero.Fs  = afero.NewOsFs()
	stdout io.Writer = os.Stdout
)

func main() {
	var parser = flags.NewParser(baseCfg, flags.Default)

	mbp.AddPrintConfigCmd(parser, iniFilename, stdout)
	mbp.AddVersionCmd(parser, stdout)

	parser.LongDescription = `topoctl previews changes to the topology of a replicated key-value store.

	Each command reads a topology document (YAML) describing zones, storage nodes
	and their parameters, shards, partitions, admins, and the pool of storage
	nodes to place onto. Placement commands print the difference between the
	document and the resulting candidate, along with its validation results,
	and optionally write the candidate as a new document with --output.
	Nothing is ever deployed.

	See --help pages of each sub-command for documentation and usage examples.
	Optionally configure topoctl with a '` + iniFilename + `' file in the current working directory,
	or with '~/.config/topoplan/` + iniFilename + `'. Use the 'print-config' sub-command to inspect
	the tool's current configuration, and 'version' to report its build.
	`

	mustAddCmd(parser.Command, "build", "Build or redistribute a topology", `
Build places as many complete shards as the pool's capacity supports. Missing
rep nodes of existing shards are placed first, and placed rep nodes are never
moved. Use build to create an initial topology, or to redistribute a deployed
one onto added storage nodes.

Example:
	topoctl build --topology store.yaml --partitions 300 --output candidate.yaml
`, &cmdBuild{})

	mustAddCmd(parser.Command, "rebalance", "Rebalance a topology", `
Rebalance relocates rep nodes to correct over-capacity storage nodes, rep nodes
of a shard sharing a storage node, and imbalance between storage nodes of a zone.
The number of shards is unchanged. Use --zone to limit rebalancing to one zone.
`, &cmdRebalance{})

	mustAddCmd(parser.Command, "contract", "Contract a topology onto fewer storage nodes", `
Contract removes storage nodes which are in use but omitted from the pool.
Shards which the remaining capacity cannot support are dropped, and rep nodes
of departing storage nodes are relocated.
`, &cmdContract{})

	mustAddCmd(parser.Command, "change-rf", "Change the replication factor of a zone", `
Change-rf sets the replication factor of a zone, adding rep nodes to every
shard. The replication factor of a primary zone may not be reduced.

Example:
	topoctl change-rf --topology store.yaml --zone zn2 --rf 2
`, &cmdChangeRF{})

	mustAddCmd(parser.Command, "remove-shard", "Remove a failed shard", `
Remove-shard removes a shard together with its rep nodes and arbiters, and
redistributes its partitions among the remaining shards.
`, &cmdRemoveShard{})

	mustAddCmd(parser.Command, "validate", "Validate a topology", `
Validate checks a topology document against the placement rules, printing each
violation and warning. It fails if any violation is found.
`, &cmdValidate{})

	mustAddCmd(parser.Command, "transition", "Check a transition between topologies", `
Transition fails if moving from the --from to the --to topology would reduce the
replication factor of a primary zone, or the total primary replication factor.
`, &cmdTransition{})

	mustAddCmd(parser.Command, "diff", "Show differences between topologies", `
Diff prints the changes required to move from the --from to the --to topology.
`, &cmdDiff{})

	mbp.MustParseConfig(parser, iniFilename)
	mbp.WriteMetrics(baseCfg.Diagnostics)
}

func startup() {
	mbp.InitLog(baseCfg.Log)
}

func mustAddCmd(cmd *flags.Command, name, short, long string, cfg interface{}) *flags.Command {
	cmd, err := cmd.AddCommand(name, short, long, cfg)
	mbp.Must(err, "failed to add command")
	return cmd
}
