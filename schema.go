package nxsqlite

import (
	"fmt"
	"strings"
)

type schemaObject struct {
	Name string  `db:"name"`
	Type string  `db:"type"`
	SQL  *string `db:"sql"`
}

func schemaObjects(c *Conn, schemaName string) ([]schemaObject, error) {
	// Auto-indexes have no SQL and go away with their table.
	return ExecuteQuery[schemaObject](c.CreateCommand(fmt.Sprintf(
		"SELECT name, type, sql FROM %s.sqlite_schema WHERE sql IS NOT NULL AND sql != ''", quoteIdent(schemaName))))
}

// DropAll deletes every index, trigger, view and table in a schema.
//
// The schemaName parameter follows the SQLite PRAGMA schema-name
// conventions; empty means "main": https://sqlite.org/pragma.html#syntax
func DropAll(c *Conn, schemaName string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("nxsqlite.DropAll: %w", err)
		}
	}()
	if schemaName == "" {
		schemaName = "main"
	}
	objs, err := schemaObjects(c, schemaName)
	if err != nil {
		return err
	}

	byType := make(map[string][]string)
	for _, o := range objs {
		switch o.Type {
		case "index", "table", "trigger", "view":
			byType[o.Type] = append(byType[o.Type], o.Name)
		default:
			return fmt.Errorf("unknown sqlite schema type %q for %q", o.Type, o.Name)
		}
	}
	for _, typ := range []string{"index", "trigger", "view", "table"} {
		for _, name := range byType[typ] {
			stmt := fmt.Sprintf("DROP %s %s.%s", strings.ToUpper(typ), quoteIdent(schemaName), quoteIdent(name))
			if _, err := c.Execute(stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

// CopyAll copies the schema and contents of one attached database to
// another on the same connection.
//
// Traditionally this is done in sqlite by closing the database and
// copying the file. Doing it online lets one replace a database that
// other Conns still have open.
func CopyAll(c *Conn, dstSchemaName, srcSchemaName string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("nxsqlite.CopyAll: %w", err)
		}
	}()
	if dstSchemaName == "" {
		dstSchemaName = "main"
	}
	if srcSchemaName == "" {
		srcSchemaName = "main"
	}
	if dstSchemaName == srcSchemaName {
		return fmt.Errorf("source matches destination: %q", srcSchemaName)
	}
	objs, err := schemaObjects(c, srcSchemaName)
	if err != nil {
		return err
	}
	dst := quoteIdent(dstSchemaName)
	for _, o := range objs {
		// The stored text always starts "CREATE <TYPE> name" whatever
		// was written, so the schema can be spliced in after the prefix.
		var prefix string
		switch o.Type {
		case "index", "table", "trigger", "view":
			prefix = "CREATE " + strings.ToUpper(o.Type) + " "
		default:
			return fmt.Errorf("unknown sqlite schema type %q for %q", o.Type, o.Name)
		}
		text := prefix + dst + "." + strings.TrimPrefix(*o.SQL, prefix)
		if _, err := c.Execute(text); err != nil {
			return err
		}
		if o.Type == "table" {
			copySQL := fmt.Sprintf("INSERT INTO %s.%s SELECT * FROM %s.%s", dst, quoteIdent(o.Name), quoteIdent(srcSchemaName), quoteIdent(o.Name))
			if _, err := c.Execute(copySQL); err != nil {
				return err
			}
		}
	}
	return nil
}
