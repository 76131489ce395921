// Package cli provides the fieldsync command-line client.
//
// Every command loads the layered configuration (defaults, config file,
// environment, flags), opens the local store and runs one operation against
// the selected tenant:
//
//	sync            full session: pull reference data, push documents
//	send            send-only session, followed by a differential pull
//	confirm         report a response code for a sent document
//	print           download the printable form of a document
//	content         show the body of a debt document
//	migrate-tenant  claim rows stored before tenants were introduced
//	status          local row counts and the last session summary
package cli
