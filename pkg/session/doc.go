/*
Package session implements session management and persistence orchestration.

It serializes access to stored editor exports per session, across replicas when
a distributed locker is configured, and supplies the sinks used by the engine's
periodic auto-backup.
*/
package session
