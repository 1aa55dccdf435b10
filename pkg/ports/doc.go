/*
Package ports defines the driven ports (interfaces) for the Foreman orchestrator.

These interfaces decouple the Manager from its external collaborators, so the same
orchestration logic runs against an HTTP machine service and a Redis transport in
production, and against in-memory doubles in tests.

# Key Interfaces

  - MachineService: The remote machine/workspace API (create, list, bind, execute, destroy).
  - Subscriber / Publisher: The output transport carrying text on named channels.
  - Notifier: The user-facing notification sink.
  - Console / MachineConsole / ConsoleRegistry: The presentation sinks for streamed output.
  - SessionStore: Persistence for MachineSession snapshots.
  - DistributedLocker: Workspace leases across Manager processes.

Adapters can verify themselves with RunTransportContract and RunSessionStoreContract.
*/
package ports
