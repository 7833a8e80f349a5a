/*
Package handle implements the handle registry that brokers access from a
scripting host to native engine objects.

Native objects (databases, iterators, write batches and snapshots) are never
handed to scripts directly. Instead every object is registered in a Context
under an opaque string handle such as "db0", "itr3" or "snap1". The handle
is the only thing a script ever sees; every later command resolves it back
through the registry.

# Contexts

A Context belongs to exactly one worker (interpreter, goroutine, script).
It holds the registry together with one allocation counter per kind, so the
handle strings of two workers can collide without ever referring to the same
object. Allocation and registration happen under one lock: Insert either
returns a new handle that resolves to the stored object or fails without
consuming a counter value.

Each registered Resource records the database it was created from (Origin)
and, for iterators, the snapshot it reads through (Pinned). The Context
counts these dependents and refuses to remove a database or snapshot while
dependents are still registered unless ContextOptions.AllowOrphans is set.

# Teardown

When a worker exits, Context.Teardown closes every remaining resource in
dependency order (iterators, snapshots, batches, databases). Close errors
are logged and combined, the registry ends up empty either way.

A Pool tracks the contexts of a process. Pool.Run creates a Context for the
duration of a function and tears it down afterward, which is how the shell
binds one Context to each script.

# Errors

All errors returned by this package are *Error values carrying a RetCode.
Use errors.Is with the sentinel errors or CodeOf to inspect them.
*/
package handle
