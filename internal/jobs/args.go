package jobs

import (
	"fmt"
	"strings"

	"github.com/nvandessel/sweep/internal/constants"
	"github.com/nvandessel/sweep/internal/models"
)

// SeedOffset returns the first seed of condition i's block. Each condition
// owns the half-open range [offset+i*replicates, offset+(i+1)*replicates).
func SeedOffset(offset, i, replicates int) int {
	return offset + i*replicates
}

// ArrayLength returns the number of array tasks needed to cover replicates
// at seedsPerTask replicates per task.
func ArrayLength(replicates, seedsPerTask int) int {
	if seedsPerTask <= 0 {
		return 0
	}
	return (replicates + seedsPerTask - 1) / seedsPerTask
}

// RenderArgs renders params as "-NAME VALUE" tokens sorted by name, followed
// by the verbatim values in the order given.
func RenderArgs(params models.Params, verbatim []string) string {
	tokens := params.Flags()
	tokens = append(tokens, verbatim...)
	return strings.Join(tokens, " ")
}

// PhaseParams returns base with the phase-activation flag set for phase.
func PhaseParams(base models.Params, flag string, phase models.Phase) models.Params {
	p := base.Clone()
	p[flag] = phase.Active()
	return p
}

// RunCommands returns the shell block that records the invocation, runs the
// simulation and, if it left a summary table, writes a copy with a constant
// phase column appended.
func RunCommands(args string, phase models.Phase) string {
	cmds := []string{
		fmt.Sprintf(`RUN_PARAMS="%s"`, args),
		fmt.Sprintf(`echo "./${EXEC} ${RUN_PARAMS}" > %s`, constants.CommandLogFile),
		fmt.Sprintf(`./${EXEC} ${RUN_PARAMS} > %s`, constants.RunLogFile),
		fmt.Sprintf(
			`if [ -f %[1]s ]; then awk -v phase_val='%[3]d' 'BEGIN{FS=OFS=","} NR==1{$0=$0",phase"} NR>1{$0=$0","phase_val} 1' %[1]s > %[2]s; fi`,
			constants.RunSummaryFile, constants.RunSummaryWithPhaseFile, int(phase),
		),
	}
	return strings.Join(cmds, "\n")
}
