package config

type WorkerKeyStruct struct {
	PersistViolationsQueue string
	PersistDocumentsQueue  string
}

var WorkerKey = &WorkerKeyStruct{
	PersistViolationsQueue: "persist_violations_queue",
	PersistDocumentsQueue:  "persist_documents_queue",
}
