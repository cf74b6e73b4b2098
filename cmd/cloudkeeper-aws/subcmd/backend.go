/*
	(c) Copyright NetFoundry Inc. Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package subcmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/cloud"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/download"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/engine"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/tags"
)

// newOrchestrator wires the orchestrator to AWS, or to the in-memory
// backends when memory is set.
func newOrchestrator(ctx context.Context, cfg *model.Config, memory bool, opts ...engine.Option) (*engine.Orchestrator, error) {
	var objects cloud.ObjectStore
	var compute cloud.Compute
	if memory {
		logrus.Info("using in-memory backends")
		objects = cloud.NewMemoryObjectStore(cfg.BucketName)
		compute = cloud.NewMemoryCompute()
	} else {
		s3, ec2, err := cloud.NewAWSBackend(cfg)
		if err != nil {
			return nil, err
		}
		objects, compute = s3, ec2
	}
	gateway, err := cloud.NewGateway(ctx, objects, compute, cfg)
	if err != nil {
		return nil, err
	}
	fetcher := download.New(nil, download.DefaultRedirectLimit)
	return engine.New(gateway, tags.NewCodec(cfg.Identifier), fetcher, opts...), nil
}
