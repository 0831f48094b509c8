package backup

// JobName is how the pipeline registers with the external job framework
const JobName = "Physical Backup Database"

// JobPriority is the scheduling priority requested from the job framework
type JobPriority string

// JobPriorityLow is used for backups: they hold production locks and should
// never preempt user-facing work
const JobPriorityLow JobPriority = "low"

// Pipeline step names, surfaced to the job framework for progress reporting
// and attached to every step failure.
const (
	StepFetchTableInfo = "Fetch Table Information"
	StepFlushTables    = "Flush Tables For Export"
	StepSyncToDisk     = "Sync Changes To Disk"
	StepValidateFiles  = "Validate Exportable Files"
	StepExportSchemas  = "Export Table Schemas"
	StepCollectMeta    = "Collect Metadata"
	StepCreateSnapshot = "Create Snapshot"
	StepUnlockTables   = "Unlock Tables"
)

// Job describes the backup pipeline to the external job framework, which owns
// scheduling, retries, and persistence of the run's outcome.
type Job struct {
	Name     string
	Priority JobPriority
	Steps    []string
}

// Describe returns the job descriptor for this orchestrator's pipeline
func (o *Orchestrator) Describe() Job {
	steps := make([]string, 0, len(o.steps()))
	for _, st := range o.steps() {
		steps = append(steps, st.name)
	}
	return Job{
		Name:     JobName,
		Priority: JobPriorityLow,
		Steps:    steps,
	}
}
