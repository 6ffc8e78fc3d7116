package version

const (
	AppName = "voicegate"
	Version = "0.1.0"
)
