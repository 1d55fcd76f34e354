package vulkan

import (
	"image"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/voxel/engine/assets/loaders"
	"github.com/spaghettifunk/voxel/engine/core"
	vmath "github.com/spaghettifunk/voxel/engine/math"
)

const textureFormat = vk.FormatR8g8b8a8Srgb

// ImageLayoutTransition is the access and stage scope of one legal layout change.
type ImageLayoutTransition struct {
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
	SrcStage  vk.PipelineStageFlags
	DstStage  vk.PipelineStageFlags
}

type layoutPair struct {
	from vk.ImageLayout
	to   vk.ImageLayout
}

var layoutTransitions = map[layoutPair]ImageLayoutTransition{
	{vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal}: {
		SrcAccess: 0,
		DstAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
	},
	{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal}: {
		SrcAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccess: vk.AccessFlags(vk.AccessTransferReadBit),
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
	},
	{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal}: {
		SrcAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
	},
	{vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutShaderReadOnlyOptimal}: {
		SrcAccess: vk.AccessFlags(vk.AccessTransferReadBit),
		DstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
	},
	{vk.ImageLayoutUndefined, vk.ImageLayoutDepthStencilAttachmentOptimal}: {
		SrcAccess: 0,
		DstAccess: vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
	},
}

// LayoutTransition looks up the barrier scope for oldLayout -> newLayout.
// Pairs outside the table are programming errors.
func LayoutTransition(oldLayout, newLayout vk.ImageLayout) (ImageLayoutTransition, error) {
	t, ok := layoutTransitions[layoutPair{oldLayout, newLayout}]
	if !ok {
		return ImageLayoutTransition{}, errors.AssertionFailedf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}
	return t, nil
}

// Texture is a sampled, mipmapped RGBA8 image. Layout tracks the layout of
// every mip level once an operation completes.
type Texture struct {
	Image     *VulkanImage
	Sampler   vk.Sampler
	Layout    vk.ImageLayout
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    vk.Format

	ctx *VulkanContext
}

// NewTextureFromImage converts img to RGBA8 and uploads it.
func NewTextureFromImage(ctx *VulkanContext, img image.Image) (*Texture, error) {
	data := loaders.ToRGBA(img)
	return NewTexture(ctx, data.Pixels, data.Width, data.Height)
}

// NewTexture uploads tightly packed RGBA8 pixels and builds the full mip chain.
func NewTexture(ctx *VulkanContext, pixels []byte, width, height uint32) (*Texture, error) {
	if width == 0 || height == 0 {
		return nil, errors.AssertionFailedf("texture size %dx%d", width, height)
	}
	if uint64(len(pixels)) != uint64(width)*uint64(height)*4 {
		return nil, errors.AssertionFailedf("texture %dx%d needs %d bytes, got %d", width, height, width*height*4, len(pixels))
	}

	t := &Texture{
		Layout:    vk.ImageLayoutUndefined,
		Width:     width,
		Height:    height,
		MipLevels: vmath.MipLevels(width, height),
		Format:    textureFormat,
		ctx:       ctx,
	}

	if t.MipLevels > 1 {
		props := ctx.Driver.FormatProperties(t.Format)
		linear := vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit)
		if props.OptimalTilingFeatures&linear == 0 {
			return nil, core.WithKind(
				errors.Newf("format %d does not support linear blitting", t.Format),
				core.ErrUnsupportedFormat)
		}
	}

	staging, err := NewStagingBuffer(ctx, pixels)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	img, err := ImageCreate(ctx, ImageConfig{
		Width:     width,
		Height:    height,
		MipLevels: t.MipLevels,
		Format:    t.Format,
		Tiling:    vk.ImageTilingOptimal,
		Usage: vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit |
			vk.ImageUsageTransferDstBit |
			vk.ImageUsageSampledBit),
		MemoryFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	})
	if err != nil {
		return nil, err
	}
	t.Image = img

	if err := t.upload(staging); err != nil {
		t.Destroy()
		return nil, err
	}

	if err := img.CreateView(vk.ImageAspectFlags(vk.ImageAspectColorBit)); err != nil {
		t.Destroy()
		return nil, err
	}
	if err := t.createSampler(); err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

func (t *Texture) upload(staging *Buffer) error {
	cb, err := t.ctx.BeginSingleTimeCommands()
	if err != nil {
		return err
	}
	if err := t.TransitionImageLayout(cb, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
		cb.Free()
		return err
	}
	t.ctx.Driver.CmdCopyBufferToImage(cb.Handle, staging.Handle, t.Image.Handle, vk.ImageLayoutTransferDstOptimal, []vk.BufferImageCopy{{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: t.Width, Height: t.Height, Depth: 1},
	}})
	if err := t.generateMipmaps(cb); err != nil {
		cb.Free()
		return err
	}
	return t.ctx.EndSingleTimeCommands(cb)
}

// TransitionImageLayout records a barrier moving every mip level from
// oldLayout to newLayout. oldLayout must be the texture's current layout.
func (t *Texture) TransitionImageLayout(cb *VulkanCommandBuffer, oldLayout, newLayout vk.ImageLayout) error {
	if t.Layout != oldLayout {
		return errors.AssertionFailedf("texture is in layout %d, not %d", t.Layout, oldLayout)
	}
	if err := t.barrier(cb, oldLayout, newLayout, 0, t.MipLevels); err != nil {
		return err
	}
	t.Layout = newLayout
	return nil
}

func (t *Texture) barrier(cb *VulkanCommandBuffer, oldLayout, newLayout vk.ImageLayout, baseMip, levels uint32) error {
	transition, err := LayoutTransition(oldLayout, newLayout)
	if err != nil {
		return err
	}
	t.ctx.Driver.CmdPipelineBarrier(cb.Handle, transition.SrcStage, transition.DstStage, []vk.ImageMemoryBarrier{{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       transition.SrcAccess,
		DstAccessMask:       transition.DstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               t.Image.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   baseMip,
			LevelCount:     levels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}})
	return nil
}

// generateMipmaps expects every level in TransferDstOptimal and leaves every
// level in ShaderReadOnlyOptimal.
func (t *Texture) generateMipmaps(cb *VulkanCommandBuffer) error {
	if t.Layout != vk.ImageLayoutTransferDstOptimal {
		return errors.AssertionFailedf("mip generation needs TransferDstOptimal, texture is in %d", t.Layout)
	}
	mipWidth, mipHeight := int32(t.Width), int32(t.Height)
	for level := uint32(0); level+1 < t.MipLevels; level++ {
		if err := t.barrier(cb, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal, level, 1); err != nil {
			return err
		}

		nextWidth, nextHeight := halve(mipWidth), halve(mipHeight)
		t.ctx.Driver.CmdBlitImage(cb.Handle,
			t.Image.Handle, vk.ImageLayoutTransferSrcOptimal,
			t.Image.Handle, vk.ImageLayoutTransferDstOptimal,
			[]vk.ImageBlit{{
				SrcSubresource: vk.ImageSubresourceLayers{
					AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
					MipLevel:       level,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				SrcOffsets: [2]vk.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: mipWidth, Y: mipHeight, Z: 1},
				},
				DstSubresource: vk.ImageSubresourceLayers{
					AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
					MipLevel:       level + 1,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				DstOffsets: [2]vk.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: nextWidth, Y: nextHeight, Z: 1},
				},
			}},
			vk.FilterLinear)

		if err := t.barrier(cb, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutShaderReadOnlyOptimal, level, 1); err != nil {
			return err
		}
		mipWidth, mipHeight = nextWidth, nextHeight
	}

	// The last level was only ever written.
	if err := t.barrier(cb, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal, t.MipLevels-1, 1); err != nil {
		return err
	}
	t.Layout = vk.ImageLayoutShaderReadOnlyOptimal
	return nil
}

func halve(v int32) int32 {
	if v > 1 {
		return v / 2
	}
	return 1
}

func (t *Texture) createSampler() error {
	anisotropy := vk.Bool32(vk.False)
	maxAnisotropy := float32(1.0)
	if t.ctx.Device.Features.SamplerAnisotropy == vk.True {
		anisotropy = vk.True
		maxAnisotropy = t.ctx.Device.Properties.Limits.MaxSamplerAnisotropy
	}
	sampler, err := t.ctx.Driver.CreateSampler(&vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		MipLodBias:              0,
		AnisotropyEnable:        anisotropy,
		MaxAnisotropy:           maxAnisotropy,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpNever,
		MinLod:                  0,
		MaxLod:                  float32(t.MipLevels),
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	})
	if err != nil {
		return errors.Wrap(err, "creating texture sampler")
	}
	t.Sampler = sampler
	return nil
}

// DescriptorInfo describes the texture as a combined image sampler.
func (t *Texture) DescriptorInfo() vk.DescriptorImageInfo {
	return vk.DescriptorImageInfo{
		Sampler:     t.Sampler,
		ImageView:   t.Image.View,
		ImageLayout: t.Layout,
	}
}

func (t *Texture) Destroy() {
	if t.Sampler != vk.NullSampler {
		t.ctx.Driver.DestroySampler(t.Sampler)
		t.Sampler = vk.NullSampler
	}
	if t.Image != nil {
		t.Image.Destroy()
		t.Image = nil
	}
}
