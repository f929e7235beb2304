// Package crawler drives one crawl epoch: it resolves the item universe,
// filters it against the checkpoint ledger, visits the remainder in a
// shuffled order, and persists each item before recording its outcome.
package crawler
