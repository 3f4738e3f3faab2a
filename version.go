package treasury

// Build information, set with -ldflags at release time.
var (
	CurrentVersion = "0.0.1"
	CurrentBranch  = ""
	CurrentCommit  = ""
	BuildDate      = ""
	Platform       = ""
	GoVersion      = ""
)
