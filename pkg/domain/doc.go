/*
Package domain contains the core domain models for the Foreman machine orchestrator.

It defines the entities shared by the Manager, the state tracker and every adapter.
The package is kept free of I/O and persistence, following Hexagonal Architecture
principles.

# Key Entities

  - MachineDescriptor: The wire form of a machine as reported by the machine service.
  - MachineSession: The Manager's record of one machine (phase and current binding).
  - Phase: The lifecycle phase of a machine (starting, running, error, stopped).
  - Output channels: Named single-subscriber streams ("machine:output:<token>").
  - Execution: The outcome of routing a command to the current machine.
*/
package domain
