// Package provisioner hosts the provisioning backends the executor
// dispatches to, behind a small named-factory registry.
//
// The engine only sees the Provisioner interface; this package decides
// which concrete backend a given invocation talks to. The built-in
// "log" backend records every call through the structured logger and
// mints instance identifiers without touching any real infrastructure,
// which makes it the safe default for staging a new deployment of the
// tool. Real backends register themselves the same way.
package provisioner
