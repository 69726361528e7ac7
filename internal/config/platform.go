package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/partcraft/partcraft/internal/partserrors"
)

// DetectBase reads /etc/os-release and returns a "<id>@<version_id>"
// base string (e.g. "ubuntu@24.04") for use as Options.Base when none
// was configured explicitly.
func DetectBase() (string, error) {
	f, err := os.Open("/etc/os-release")
	if err != nil {
		return "", partserrors.NewOsReleaseIdError(err.Error())
	}
	defer f.Close()

	fields := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields[key] = strings.Trim(value, `"`)
	}
	if err := scanner.Err(); err != nil {
		return "", partserrors.NewOsReleaseIdError(err.Error())
	}

	id, version := fields["ID"], fields["VERSION_ID"]
	if id == "" || version == "" {
		return "", partserrors.NewOsReleaseIdError("missing ID or VERSION_ID in /etc/os-release")
	}
	return fmt.Sprintf("%s@%s", id, version), nil
}
