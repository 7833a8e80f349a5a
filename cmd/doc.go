// Package cmd implements the command-line interface of hKV.
//
// The package is organized into several subpackages:
//
//   - shell: Runs scripts of the handle command language, one worker per file
//   - db: Maintenance of databases that are not open (repair, destroy, stats)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set through an environment variable of the form
// HKV_<FLAG> (e.g. HKV_CACHE_SIZE=64), .env and .env.local are loaded first.
//
// See hkv -help for a list of all commands.
package cmd
