/*
Package ddns keeps the DNS address records for a hostname converged with
the host's current externally-visible IP addresses.

Usage will always start with [ddns.New],
which returns the DDNSClient implementation.
New requires the hostname whose records will be managed and a record
store option such as [UsingDreamhost] for the DNS provider holding them.
Additional client configuration options are listed in the docs for New.

Each update cycle diffs the addresses reported by the configured
[Resolver] against the records the [Store] currently holds and applies
only the mutations needed to converge them. [RunDaemon] repeats cycles
for the life of the process, backing off additively while cycles fail.
*/
package ddns
