// Package task manages background job queuing, processing, and lifecycle.
// It provides mechanisms for asynchronous execution of deferred work like
// appending problem logs and dispatching post-attempt hooks, ensuring they
// don't block attempt handling and can recover from application restarts.
package task
