/*
Package ipc provides the in-process IPC service.

# Overview

A Service owns three tables: channels (indexed by id and by name),
shared-memory regions and memory pools keyed by block size. Each operation
takes the table lock it needs, looks up its target and releases the lock
before touching the channel, so a slow receiver never blocks channel
creation.

# Transports

Channels move messages over four back-ends:

  - OrderedQueue: priority-ordered queue under a mutex
  - LockFreeQueue: MPSC queue, producers never block
  - SharedMemory: messages carry a region reference
  - MemoryPool: messages carry a pool block reference

Pipe, Socket, EventFd and Signal are declared but rejected with
ipcerr.ErrUnsupported when used as a channel default.

# Zero-copy ownership

Region and pool payloads are references. The service keeps the memory alive
and receivers read it through ResolvePayload. Pool blocks carry a generation
that changes on every allocation; a message tagged with the generation from
AllocateBlock is refused once its block has been freed and reused.

# Usage

	svc, err := ipc.New(cfg.IPC, logger)
	if err != nil {
	    return err
	}
	svc = svc.WithMetrics(metrics)

	chID, _ := svc.CreateChannel("events", channel.TypePointToPoint, 128)
	_ = svc.SendMessage(chID, message.New(1, 2, message.KindEvent).WithData(payload))
	msg, err := svc.ReceiveMessage(chID, 2)
*/
package ipc
