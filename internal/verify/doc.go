// Package verify is the read-only integrity auditor for the canonical
// event chain.
//
// Each check is the executable form of an invariant the rest of the
// system promises to uphold: mentions keep their document references,
// events keep at least one mention, hierarchy references resolve to
// roots. The verifier never repairs anything. A violation is reported
// with a count and a bounded sample of offending rows, and remediation
// stays a separate, deliberate operation.
//
// # CHECKS
//
//   - mention-empty-docs: mentions whose document-identifier set is
//     null or empty. Coverage without provenance cannot be traced back
//     to source articles.
//   - mention-missing-docs: document identifiers referenced by
//     mentions that have no row in the document store. Expensive at
//     scale, so the default run inspects only the newest rows; FullScan
//     walks everything.
//   - event-zero-mentions: canonical events owning no mentions. Post
//     merge this should be zero for masters; a zero-mention child is a
//     builder defect.
//   - cluster-empty-docs: clusters with an empty document set. An
//     upstream producer defect, reported here because this is where it
//     gets noticed.
//   - hierarchy-refs: master references that dangle or point at
//     another child. The schema guards these on write; the check
//     catches rows that arrived around the guards.
//
// The pipeline stats block is not a check. It reports per-country
// processed/deconflicted/scored rates for operational visibility and
// never fails a run.
//
// # GATING
//
// Report.Failed is true when any check found violations. The CLI maps
// that to a non-zero exit so automation can gate on it.
package verify
