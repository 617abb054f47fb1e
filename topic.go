// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package transport

import "strings"

// fullyQualify composes partition, namespace and topic into the canonical
// registry key "<partition>@<namespace>/<topic>". It fails if partition or
// topic is empty, or if either namespace or topic embeds the '@' delimiter.
func fullyQualify(partition, namespace, topic string) (string, bool) {
	if partition == "" || topic == "" {
		return "", false
	}
	if strings.Contains(partition, "@") || strings.Contains(namespace, "@") || strings.Contains(topic, "@") {
		return "", false
	}

	ns := strings.Trim(namespace, "/")
	t := strings.TrimPrefix(topic, "/")
	if t == "" {
		return "", false
	}

	var joined string
	if ns == "" {
		joined = "/" + t
	} else {
		joined = "/" + ns + "/" + t
	}

	return partition + "@" + joined, true
}

// stripPartition returns the user-facing view of a fully-qualified name:
// everything up to and including the last '@' is removed.
func stripPartition(fqName string) string {
	if idx := strings.LastIndex(fqName, "@"); idx >= 0 {
		return fqName[idx+1:]
	}
	return fqName
}
