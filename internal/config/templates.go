package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a starter file for kind "server" or "schema".
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		return serverTemplate, nil
	case "schema":
		return schemaTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const serverTemplate = `port = 8080
schema_file = ""
pool_size = 50
session_timeout = "30s"
write_timeout = "30s"
drain_timeout = "30s"
admin_addr = ""
cors_origins = ["http://localhost:3000"]
admin_token = ""
binary_header = true
binary_bitmap = true
binary_fields = true
assign_date = true
max_frame = 65535
`

const schemaTemplate = `# Bytes skipped in front of the MTI on decode.
parse_header_length = 0

# Answer undecodable requests with this type and field 39 = "06".
# Leave empty to close the connection without a response.
error_response_type = ""

# ISO header written in front of each response type. Hex when
# binary_header is on.
[headers]

# Fields added to or replacing the built-in layout.
[[fields]]
number = 48
type = "LLLVAR"

[[fields]]
number = 63
type = "LLLVAR"
`
