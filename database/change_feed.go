package database

import (
	"gorm.io/gorm"
)

// ChangeFeedChannel is the NOTIFY channel the realtime listener subscribes to
const ChangeFeedChannel = "campus_flow_changes"

// ChangeFeedTables are the tables whose writes are broadcast. Per-user tables
// report their user_id as the owner so only that user's stream sees them.
var ChangeFeedTables = []string{"resources", "profiles", "notifications", "saved_resources", "mission_assignments"}

// InstallChangeFeed creates the notify function and one AFTER trigger per
// table. The payload is {"table","type","id","user_id"}.
func InstallChangeFeed(db *gorm.DB) error {
	function := `
	CREATE OR REPLACE FUNCTION campus_flow_notify_change() RETURNS trigger AS $$
	DECLARE
		rec RECORD;
		owner BIGINT;
	BEGIN
		IF TG_OP = 'DELETE' THEN
			rec := OLD;
		ELSE
			rec := NEW;
		END IF;

		IF TG_TABLE_NAME = 'resources' THEN
			owner := rec.uploader_id;
		ELSIF TG_TABLE_NAME = 'profiles' THEN
			owner := rec.id;
		ELSE
			owner := rec.user_id;
		END IF;

		PERFORM pg_notify('` + ChangeFeedChannel + `', json_build_object(
			'table', TG_TABLE_NAME,
			'type', TG_OP,
			'id', rec.id,
			'user_id', owner
		)::text);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql;
	`
	if err := db.Exec(function).Error; err != nil {
		return err
	}

	for _, table := range ChangeFeedTables {
		trigger := `
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = '` + table + `_change_feed') THEN
				CREATE TRIGGER ` + table + `_change_feed
				AFTER INSERT OR UPDATE OR DELETE ON ` + table + `
				FOR EACH ROW EXECUTE FUNCTION campus_flow_notify_change();
			END IF;
		END $$;
		`
		if err := db.Exec(trigger).Error; err != nil {
			return err
		}
	}
	return nil
}

// InstallYearUniqueIndex enforces one Year row per (course, year_number) on fresh schemas
func InstallYearUniqueIndex(db *gorm.DB) error {
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_years_course_year_number ON years (course_id, year_number)`).Error
}
