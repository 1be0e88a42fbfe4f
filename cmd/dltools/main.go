// Command dltools is the thin CLI front-end over the executor: one verb
// per facade operation, mirroring the original's Plac-style mnemonic
// dispatch (FacadeInfoApplication/FacadeModelApplication) with Go's
// stdlib flag package in place of a Python arg-parsing framework. No
// example repo in this pack ties a CLI-flag library to multi-verb
// dispatch, so this stays on the standard library rather than adopting
// one just for this entrypoint.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/plandes/dltools/pkg/appconfig"
	"github.com/plandes/dltools/pkg/dlerrors"
	"github.com/plandes/dltools/pkg/executor"
	"github.com/plandes/dltools/pkg/result"
	"github.com/plandes/dltools/pkg/resultmgr"
)

var verbs = []string{
	"train", "test", "traintest", "trainprod",
	"batch", "rmbatch", "info", "resum", "debug", "stop",
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	verb := os.Args[1]

	fs := flag.NewFlagSet(verb, flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML or JSON AppConfig document")
	progressFlag := fs.Bool("progress", false, "enable the progress indicator")
	limit := fs.Int("limit", 1, "number of batches to print (batch verb only)")
	outfile := fs.String("outfile", "", "result summary output file (resum verb only)")
	resultDir := fs.String("result-dir", "", "override result directory (resum verb only)")
	item := fs.String("item", "default", "info item: default, config, model, settings, executor")
	fs.Parse(os.Args[2:])

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		fail(err)
	}
	f, err := newFacade(cfg, *progressFlag)
	if err != nil {
		fail(err)
	}

	ctx := context.Background()

	switch verb {
	case "train":
		err = runTrain(ctx, f)
	case "test":
		err = runTest(ctx, f)
	case "traintest":
		err = runTrainTest(ctx, f)
	case "trainprod":
		err = runTrainProd(ctx, f)
	case "batch":
		err = runBatch(f, *limit)
	case "rmbatch":
		err = runRmbatch(f)
	case "info":
		err = runInfo(f, *item)
	case "resum":
		err = runResum(f, *outfile, *resultDir)
	case "debug":
		err = runDebug(ctx, f)
	case "stop":
		err = runStop(f)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: dltools <verb> [flags]\nverbs: %v\n", verbs)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "dltools:", err)
	os.Exit(1)
}

// runTrain mirrors ModelFacade.train: train, print a summary, and persist
// the result through the result manager. No test phase runs.
func runTrain(ctx context.Context, f *Facade) error {
	exec, err := f.newExecutor()
	if err != nil {
		return err
	}
	mr, err := exec.Train(ctx)
	if err != nil {
		return err
	}
	printSummary("train", mr)
	if _, err := f.persistResult(mr); err != nil {
		return err
	}
	return nil
}

// runTest mirrors ModelFacade.test: load a checkpointed executor and
// test only, without persisting through the result manager (the
// original's test() only writes a non-verbose report, it never calls
// persist_result()).
func runTest(ctx context.Context, f *Facade) error {
	exec, err := f.loadExecutor()
	if err != nil {
		return err
	}
	mr, err := exec.Test(ctx)
	if err != nil {
		return err
	}
	printSummary("test", mr)
	return nil
}

func runTrainTest(ctx context.Context, f *Facade) error {
	exec, err := f.newExecutor()
	if err != nil {
		return err
	}
	mr, err := exec.TrainTest(ctx)
	if err != nil {
		return err
	}
	printSummary("traintest", mr)
	if _, err := f.persistResult(mr); err != nil {
		return err
	}
	return nil
}

// runTrainProd mirrors ModelFacade's train_production: the executor
// already writes the final checkpoint result snapshot itself, but the
// run is still worth a result-manager entry for resum.
func runTrainProd(ctx context.Context, f *Facade) error {
	exec, err := f.newExecutor()
	if err != nil {
		return err
	}
	mr, err := exec.TrainProduction(ctx)
	if err != nil {
		return err
	}
	printSummary("trainprod", mr)
	if _, err := f.persistResult(mr); err != nil {
		return err
	}
	return nil
}

// runBatch mirrors the original's batch(limit) mnemonic: print the
// train loader's shape and the first limit batches it yields.
func runBatch(f *Facade, limit int) error {
	loader := f.trainLoader
	fmt.Printf("train loader: %d batches of size %d\n", loader.Len(), loader.BatchSize())
	loader.Reset()
	for i := 0; i < limit && loader.HasNext(); i++ {
		b := loader.Next()
		fmt.Printf("batch %d: features=%v targets=%v\n", i, b.Features.Shape, b.Targets.Shape)
	}
	return nil
}

// runRmbatch has no on-disk batch stash to clear: the vectorize/caching
// pipeline that owns that concept in the original is an external
// collaborator out of scope here. The only batch cache this module owns
// is batchpolicy.Policy's in-process LRU, which never outlives one CLI
// invocation, so there is nothing a separate process invocation could
// usefully clear. Still invalidate it for the current process and say
// so, rather than silently doing nothing.
func runRmbatch(f *Facade) error {
	f.batchPolicy.DeallocateBatches()
	fmt.Println("no persisted batch stash in this module (vectorize caching is out of scope); in-process batch cache deallocated")
	return nil
}

func runInfo(f *Facade, item string) error {
	switch item {
	case "config":
		data, err := json.MarshalIndent(f.cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "model":
		fmt.Printf("model: %d parameter tensors\n", len(f.model.Params()))
	case "settings":
		fmt.Printf("epochs=%d lr=%g criterion=%s optimizer=%s scheduler=%q reduction=%s nominal=%v seed=%d debug=%d\n",
			f.cfg.Training.Epochs, f.cfg.Training.LearningRate, f.cfg.Training.Criterion,
			f.cfg.Training.Optimizer, f.cfg.Training.Scheduler, f.cfg.Training.Reduction,
			f.cfg.Training.Nominal, f.cfg.Training.Seed, f.cfg.Training.DebugLevel)
	case "executor":
		fmt.Printf("checkpoint exists: %v\n", f.checkpoint.Exists())
		keys, err := f.resultMgr.Keys()
		if err != nil {
			return err
		}
		fmt.Printf("result keys: %v\n", keys)
	default:
		fmt.Printf("name: %s\ndescription: %s\n", f.cfg.Name, f.cfg.Description)
	}
	return nil
}

// runResum mirrors result_summary: every stored run gets one CSV row,
// defaulting the output path to "<prefix>.csv" as the original does with
// f'{rm.prefix}.csv'. No CSV library appears anywhere in this pack, so
// this uses encoding/csv rather than hand-rolling a writer.
func runResum(f *Facade, outfile, resultDirOverride string) error {
	mgr := f.resultMgr
	if resultDirOverride != "" {
		mgr = resultmgr.New(resultDirOverride, f.cfg.Name)
	}
	keys, err := mgr.Keys()
	if err != nil {
		return err
	}
	if outfile == "" {
		outfile = mgr.Prefix + ".csv"
	}

	out, err := os.Create(outfile)
	if err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "create result summary file", err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write([]string{
		"run_index", "run_id", "name", "description",
		"train_ave_loss", "validation_ave_loss", "test_ave_loss",
	}); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "write result summary header", err)
	}

	for _, key := range keys {
		rec, err := mgr.Load(key)
		if err != nil {
			return err
		}
		if err := w.Write([]string{
			strconv.Itoa(rec.RunIndex), rec.RunID.String(), rec.Name, rec.Description,
			strconv.FormatFloat(rec.TrainResult.AveLoss(), 'f', 6, 64),
			strconv.FormatFloat(rec.ValidationResult.AveLoss(), 'f', 6, 64),
			strconv.FormatFloat(rec.TestResult.AveLoss(), 'f', 6, 64),
		}); err != nil {
			return dlerrors.Wrap(dlerrors.KindIO, "write result summary row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "flush result summary file", err)
	}
	fmt.Printf("wrote %d rows to %s\n", len(keys), outfile)
	return nil
}

// runDebug forces the debug-with-dump level and runs one training pass,
// deliberately exercising the EarlyBail escape (the original's debug()
// swaps in a one-batch limit and routes logging through the debug
// loggers; here the executor's own Debug level already encodes that
// escape hatch). Executor.Train catches EarlyBail itself and returns an
// empty ModelResult with a nil error, so the bail is observed here as an
// empty train result, not a returned error.
func runDebug(ctx context.Context, f *Facade) error {
	f.cfg.Training.DebugLevel = int(executor.DebugBailWithDump)
	exec, err := f.newExecutor()
	if err != nil {
		return err
	}
	mr, err := exec.Train(ctx)
	if err != nil {
		return err
	}
	if mr.TrainResult.IsEmpty() {
		fmt.Println("debug bail: executor reset after the first forward pass")
		return nil
	}
	printSummary("debug", mr)
	return nil
}

func runStop(f *Facade) error {
	stopped, err := f.lifecycle.Stop()
	if err != nil {
		return err
	}
	fmt.Println("stop requested:", stopped)
	return nil
}

// printSummary reports each split's epoch count and average loss,
// skipping splits the run never touched (IsEmpty rather than AveLoss,
// which returns 0 there, or MinLoss, which returns a KindNoResults error).
func printSummary(verb string, mr *result.ModelResult) {
	fmt.Printf("%s run %d (%s)\n", verb, mr.RunIndex, mr.RunID)
	report := func(split string, dr *result.DatasetResult) {
		if dr == nil || dr.IsEmpty() {
			return
		}
		fmt.Printf("  %s: %d epochs, ave_loss=%f\n", split, len(dr.Epochs()), dr.AveLoss())
	}
	report("train", mr.TrainResult)
	report("validation", mr.ValidationResult)
	report("test", mr.TestResult)
}
