package config

type WorkerKeyStruct struct {
	AutosaveQueue      string
	ProctorEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	AutosaveQueue:      "autosave_queue",
	ProctorEventsQueue: "proctor_events_queue",
}
