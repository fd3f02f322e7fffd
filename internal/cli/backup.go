package cli

import (
	stderrors "errors"
	"fmt"

	"github.com/abrezinsky/slotboard/internal/archive"
	"github.com/abrezinsky/slotboard/internal/services"
)

// BackupResetCmd is the unattended weekly job: a full JSON archive of the
// store, then the snapshot and reset of every slot.
type BackupResetCmd struct {
	ArchiveDir string `help:"Directory for JSON archives." env:"ARCHIVE_DIR" default:"archives" type:"path"`
	Keep       int    `help:"Number of archives to keep." default:"12"`
}

func (cmd *BackupResetCmd) Run(c *Context) error {
	repo, err := c.Repository()
	if err != nil {
		return err
	}
	loc, err := c.Location()
	if err != nil {
		return err
	}

	writer := archive.NewWriter(cmd.ArchiveDir, cmd.Keep, loc)
	if c.now != nil {
		writer.SetClock(c.now)
	}
	exported, err := writer.Export(c.Ctx, repo)
	if err != nil {
		if exported == nil {
			return fmt.Errorf("archive failed, nothing was reset: %w", err)
		}
		c.Log.Warn("Archive rotation failed", "error", err)
	}
	c.Log.Info("Archive written", "path", exported.Path, "collections", len(exported.Collections), "documents", exported.Documents)

	if exported.Count("slots") == 0 {
		c.Log.Warn("No slots found, skipping reset")
		fmt.Fprintf(c.Out, "Archive: %s\nNo slots to reset\n", exported.Path)
		return nil
	}

	lifecycle, err := c.Lifecycle()
	if err != nil {
		return err
	}
	result, err := lifecycle.RunBackupAndReset(c.Ctx)
	var partial *services.PartialResetError
	if stderrors.As(err, &partial) {
		c.Log.Error("Reset stopped part way", "backup", partial.BackupID, "reset", partial.SlotsReset, "total", partial.Total, "error", partial.Err)
		return err
	}
	if err != nil {
		return err
	}
	result.ArchivePath = exported.Path

	fmt.Fprintf(c.Out, "Backup: %s\nSlots reset: %d (%d batches)\nArchive: %s\n",
		result.BackupID, result.SlotsReset, result.Batches, result.ArchivePath)
	return nil
}

// BackupsCmd lists what earlier runs left behind
type BackupsCmd struct {
	ArchiveDir string `help:"Directory for JSON archives." env:"ARCHIVE_DIR" default:"archives" type:"path"`
}

func (cmd *BackupsCmd) Run(c *Context) error {
	repo, err := c.Repository()
	if err != nil {
		return err
	}
	loc, err := c.Location()
	if err != nil {
		return err
	}

	snapshots, err := repo.ListBackups(c.Ctx)
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(c.Out, "No snapshots found.")
	} else {
		fmt.Fprintf(c.Out, "Snapshots (%d):\n", len(snapshots))
		for _, s := range snapshots {
			fmt.Fprintf(c.Out, "  %-14s %s  %d slots\n", s.ID, s.CreatedAt.In(loc).Format("2006-01-02 15:04"), s.SlotCount)
		}
	}

	archives, err := archive.NewWriter(cmd.ArchiveDir, 0, loc).List()
	if err != nil {
		return fmt.Errorf("list archives: %w", err)
	}
	if len(archives) == 0 {
		fmt.Fprintf(c.Out, "No archives in %s.\n", cmd.ArchiveDir)
		return nil
	}
	fmt.Fprintf(c.Out, "Archives in %s (%d):\n", cmd.ArchiveDir, len(archives))
	for _, a := range archives {
		fmt.Fprintf(c.Out, "  %s  %.1f KB\n", a.Date.Format("2006-01-02"), float64(a.Size)/1024.0)
	}
	return nil
}
